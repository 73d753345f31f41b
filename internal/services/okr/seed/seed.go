// Package seed imports OKR fixtures from YAML. Every record goes through the
// engine's own operations, so imported data obeys the same invariants as
// data written any other way.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
)

// Document is the root of a seed file.
//
//	objectives:
//	  - key: growth
//	    title: Grow activation
//	    owner_id: user-1
//	    quarter: 2026-Q3
//	    key_results:
//	      - title: Signups
//	        target: "1000"
//	        check_ins:
//	          - value: "420"
//	alignments:
//	  - parent: company
//	    child: growth
type Document struct {
	Objectives []ObjectiveSpec `yaml:"objectives"`
	Alignments []AlignmentSpec `yaml:"alignments"`
}

// ObjectiveSpec describes one Objective. Key is a document-local name used
// by parent and alignment references.
type ObjectiveSpec struct {
	Key         string          `yaml:"key"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	OwnerID     string          `yaml:"owner_id"`
	TeamID      string          `yaml:"team_id"`
	WorkspaceID string          `yaml:"workspace_id"`
	Quarter     string          `yaml:"quarter"`
	Parent      string          `yaml:"parent"`
	Weight      string          `yaml:"weight"`
	KeyResults  []KeyResultSpec `yaml:"key_results"`
}

// KeyResultSpec describes one Key Result and its check-in history, oldest
// first.
type KeyResultSpec struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	MetricType  string        `yaml:"metric_type"`
	Unit        string        `yaml:"unit"`
	Target      string        `yaml:"target"`
	Weight      string        `yaml:"weight"`
	CheckIns    []CheckInSpec `yaml:"check_ins"`
}

// CheckInSpec describes one check-in.
type CheckInSpec struct {
	Value  string `yaml:"value"`
	Note   string `yaml:"note"`
	Author string `yaml:"author"`
}

// AlignmentSpec links two objectives by key.
type AlignmentSpec struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// Engine is the set of operations an import drives.
type Engine interface {
	CreateObjective(ctx context.Context, in domain.ObjectiveInput) (domain.Objective, error)
	CreateKeyResult(ctx context.Context, in domain.KeyResultInput) (domain.KeyResult, error)
	RecordCheckIn(ctx context.Context, keyResultID string, value decimal.Decimal, note, author string) (domain.CheckIn, error)
	ProposeAlignment(ctx context.Context, parentID, childID, createdBy string) (domain.Alignment, error)
}

// Result reports what an import created.
type Result struct {
	// Objectives maps document keys to created Objective ids.
	Objectives map[string]string
	KeyResults int
	CheckIns   int
	Alignments int
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("decode seed: %w", err)
	}
	return doc, nil
}

// Apply writes doc through engine in document order. Objectives must be
// listed after the parent they reference. Apply stops at the first error;
// records created before it are kept.
func Apply(ctx context.Context, engine Engine, doc Document) (Result, error) {
	result := Result{Objectives: make(map[string]string, len(doc.Objectives))}

	for i, spec := range doc.Objectives {
		key := strings.TrimSpace(spec.Key)
		if key != "" {
			if _, dup := result.Objectives[key]; dup {
				return result, fmt.Errorf("objectives[%d]: duplicate key %q", i, key)
			}
		}
		in, err := objectiveInput(spec, result.Objectives)
		if err != nil {
			return result, fmt.Errorf("objectives[%d]: %w", i, err)
		}
		objective, err := engine.CreateObjective(ctx, in)
		if err != nil {
			return result, fmt.Errorf("objectives[%d]: create: %w", i, err)
		}
		if key != "" {
			result.Objectives[key] = objective.ID
		}

		for j, krSpec := range spec.KeyResults {
			if err := applyKeyResult(ctx, engine, objective, krSpec, &result); err != nil {
				return result, fmt.Errorf("objectives[%d].key_results[%d]: %w", i, j, err)
			}
		}
	}

	for i, spec := range doc.Alignments {
		parentID, ok := result.Objectives[strings.TrimSpace(spec.Parent)]
		if !ok {
			return result, fmt.Errorf("alignments[%d]: unknown parent %q", i, spec.Parent)
		}
		childID, ok := result.Objectives[strings.TrimSpace(spec.Child)]
		if !ok {
			return result, fmt.Errorf("alignments[%d]: unknown child %q", i, spec.Child)
		}
		if _, err := engine.ProposeAlignment(ctx, parentID, childID, "seed"); err != nil {
			return result, fmt.Errorf("alignments[%d]: %w", i, err)
		}
		result.Alignments++
	}
	return result, nil
}

func applyKeyResult(ctx context.Context, engine Engine, objective domain.Objective, spec KeyResultSpec, result *Result) error {
	target, err := decimal.NewFromString(strings.TrimSpace(spec.Target))
	if err != nil {
		return fmt.Errorf("target %q: %w", spec.Target, err)
	}
	weight, err := optionalDecimal(spec.Weight)
	if err != nil {
		return fmt.Errorf("weight %q: %w", spec.Weight, err)
	}
	kr, err := engine.CreateKeyResult(ctx, domain.KeyResultInput{
		ObjectiveID: objective.ID,
		Title:       spec.Title,
		Description: spec.Description,
		MetricType:  domain.MetricType(strings.ToUpper(strings.TrimSpace(spec.MetricType))),
		Unit:        spec.Unit,
		TargetValue: target,
		Weight:      weight,
	})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	result.KeyResults++

	for k, ciSpec := range spec.CheckIns {
		value, err := decimal.NewFromString(strings.TrimSpace(ciSpec.Value))
		if err != nil {
			return fmt.Errorf("check_ins[%d]: value %q: %w", k, ciSpec.Value, err)
		}
		author := strings.TrimSpace(ciSpec.Author)
		if author == "" {
			author = objective.OwnerID
		}
		if _, err := engine.RecordCheckIn(ctx, kr.ID, value, ciSpec.Note, author); err != nil {
			return fmt.Errorf("check_ins[%d]: %w", k, err)
		}
		result.CheckIns++
	}
	return nil
}

func objectiveInput(spec ObjectiveSpec, keys map[string]string) (domain.ObjectiveInput, error) {
	weight, err := optionalDecimal(spec.Weight)
	if err != nil {
		return domain.ObjectiveInput{}, fmt.Errorf("weight %q: %w", spec.Weight, err)
	}
	in := domain.ObjectiveInput{
		Title:       spec.Title,
		Description: spec.Description,
		OwnerID:     spec.OwnerID,
		TeamID:      spec.TeamID,
		WorkspaceID: spec.WorkspaceID,
		Quarter:     spec.Quarter,
		Weight:      weight,
		CreatedBy:   spec.OwnerID,
	}
	if parent := strings.TrimSpace(spec.Parent); parent != "" {
		parentID, ok := keys[parent]
		if !ok {
			return domain.ObjectiveInput{}, fmt.Errorf("unknown parent %q", parent)
		}
		in.ParentID = parentID
	}
	return in, nil
}

func optionalDecimal(value string) (decimal.NullDecimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
