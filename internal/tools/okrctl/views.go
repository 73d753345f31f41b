package okrctl

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/louisbranch/okrengine/internal/services/okr/alignment"
	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/planning"
	"github.com/louisbranch/okrengine/internal/services/okr/summary"
)

type objectiveView struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	OwnerID     string              `json:"owner_id"`
	TeamID      string              `json:"team_id,omitempty"`
	WorkspaceID string              `json:"workspace_id,omitempty"`
	Quarter     string              `json:"quarter"`
	Status      domain.Status       `json:"status"`
	Progress    decimal.NullDecimal `json:"progress"`
	Weight      decimal.Decimal     `json:"weight"`
	ParentID    string              `json:"parent_id,omitempty"`
	StartDate   *time.Time          `json:"start_date,omitempty"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	CreatedBy   string              `json:"created_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	KeyResults  []keyResultView     `json:"key_results,omitempty"`
}

type keyResultView struct {
	ID           string            `json:"id"`
	ObjectiveID  string            `json:"objective_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	MetricType   domain.MetricType `json:"metric_type"`
	Unit         string            `json:"unit,omitempty"`
	TargetValue  decimal.Decimal   `json:"target_value"`
	CurrentValue decimal.Decimal   `json:"current_value"`
	Weight       decimal.Decimal   `json:"weight"`
	Progress     *decimal.Decimal  `json:"progress,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type checkInView struct {
	ID          string          `json:"id"`
	KeyResultID string          `json:"key_result_id"`
	Value       decimal.Decimal `json:"value"`
	Note        string          `json:"note,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type alignmentView struct {
	ParentObjectiveID string    `json:"parent_objective_id"`
	ChildObjectiveID  string    `json:"child_objective_id"`
	CreatedBy         string    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type nodeView struct {
	ObjectiveID string `json:"objective_id"`
	ParentID    string `json:"parent_id"`
	Depth       int    `json:"depth"`
}

type summaryView struct {
	Total           int                   `json:"total_objectives"`
	AverageProgress decimal.Decimal       `json:"average_progress"`
	ByStatus        map[domain.Status]int `json:"status_distribution"`
	TopPerformers   []objectiveView       `json:"top_performers,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newObjectiveView(o domain.Objective) objectiveView {
	return objectiveView{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		OwnerID:     o.OwnerID,
		TeamID:      o.TeamID,
		WorkspaceID: o.WorkspaceID,
		Quarter:     o.Quarter,
		Status:      o.Status,
		Progress:    o.Progress,
		Weight:      o.Weight,
		ParentID:    o.ParentID,
		StartDate:   optionalTime(o.StartDate),
		EndDate:     optionalTime(o.EndDate),
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func newObjectiveViews(objectives []domain.Objective) []objectiveView {
	out := make([]objectiveView, 0, len(objectives))
	for _, o := range objectives {
		out = append(out, newObjectiveView(o))
	}
	return out
}

func newReportView(report planning.ObjectiveReport) objectiveView {
	view := newObjectiveView(report.Objective)
	for _, item := range report.KeyResults {
		kr := newKeyResultView(item.KeyResult)
		p := item.Progress
		kr.Progress = &p
		view.KeyResults = append(view.KeyResults, kr)
	}
	return view
}

func newKeyResultView(kr domain.KeyResult) keyResultView {
	return keyResultView{
		ID:           kr.ID,
		ObjectiveID:  kr.ObjectiveID,
		Title:        kr.Title,
		Description:  kr.Description,
		MetricType:   kr.MetricType,
		Unit:         kr.Unit,
		TargetValue:  kr.TargetValue,
		CurrentValue: kr.CurrentValue,
		Weight:       kr.EffectiveWeight(),
		CreatedAt:    kr.CreatedAt,
		UpdatedAt:    kr.UpdatedAt,
	}
}

func newCheckInView(ci domain.CheckIn) checkInView {
	return checkInView{
		ID:          ci.ID,
		KeyResultID: ci.KeyResultID,
		Value:       ci.Value,
		Note:        ci.Note,
		CreatedBy:   ci.CreatedBy,
		CreatedAt:   ci.CreatedAt,
		UpdatedAt:   ci.UpdatedAt,
	}
}

func newCheckInViews(checkIns []domain.CheckIn) []checkInView {
	out := make([]checkInView, 0, len(checkIns))
	for _, ci := range checkIns {
		out = append(out, newCheckInView(ci))
	}
	return out
}

func newAlignmentView(a domain.Alignment) alignmentView {
	return alignmentView{
		ParentObjectiveID: a.ParentObjectiveID,
		ChildObjectiveID:  a.ChildObjectiveID,
		CreatedBy:         a.CreatedBy,
		CreatedAt:         a.CreatedAt,
	}
}

func newNodeViews(nodes []alignment.Node) []nodeView {
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{ObjectiveID: n.ObjectiveID, ParentID: n.ParentID, Depth: n.Depth})
	}
	return out
}

func newSummaryView(s summary.Summary, top []domain.Objective) summaryView {
	view := summaryView{
		Total:           s.Total,
		AverageProgress: s.AverageProgress,
		ByStatus:        s.ByStatus,
	}
	if len(top) > 0 {
		view.TopPerformers = newObjectiveViews(top)
	}
	return view
}
