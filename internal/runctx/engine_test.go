// SPDX-License-Identifier: Apache-2.0

package runctx

import (
	"testing"

	"github.com/google/uuid"

	"github.com/pixeltools/imageflow/internal/domain"
)

func testDefinition() domain.WorkflowDefinition {
	return domain.WorkflowDefinition{
		ID:           uuid.New(),
		Name:         "shrink-and-web",
		SourceToolID: domain.ToolResize,
		Steps: []domain.ToolID{
			domain.ToolResize,
			domain.ToolCompress,
			domain.ToolToWebp,
		},
	}
}

func TestStartSnapshots(t *testing.T) {
	def := testDefinition()
	rc := Start(def, 1)

	if rc.WorkflowID != def.ID {
		t.Fatal("expected workflow id snapshot")
	}
	if rc.WorkflowName != def.Name {
		t.Fatal("expected workflow name snapshot")
	}
	if rc.CurrentStepIndex != 1 {
		t.Fatalf("expected index 1, got %d", rc.CurrentStepIndex)
	}
	if rc.RunID == uuid.Nil {
		t.Fatal("expected a fresh run id")
	}

	// Steps are a copy: editing the definition afterwards must not
	// reach into the in-flight run.
	def.Steps[1] = domain.ToolCrop
	if rc.Steps[1] != domain.ToolCompress {
		t.Fatal("expected steps snapshot to be independent of the definition")
	}
}

func TestNextStepAdvances(t *testing.T) {
	rc := Start(testDefinition(), 1)

	adv := NextStep(&rc, domain.ToolCompress)
	if adv == nil {
		t.Fatal("expected an advance")
	}
	if adv.NextTool != domain.ToolToWebp {
		t.Fatalf("expected next tool TO_WEBP, got %s", adv.NextTool)
	}
	if adv.Context.CurrentStepIndex != 2 {
		t.Fatalf("expected index 2, got %d", adv.Context.CurrentStepIndex)
	}

	// Input is untouched.
	if rc.CurrentStepIndex != 1 {
		t.Fatal("NextStep must not mutate its input")
	}

	// The pipeline is now exhausted.
	last := adv.Context
	if NextStep(&last, domain.ToolToWebp) != nil {
		t.Fatal("expected nil at end of sequence")
	}
	if !FinishedAt(&last, domain.ToolToWebp) {
		t.Fatal("expected terminal context to report finished")
	}
}

func TestNextStepMismatch(t *testing.T) {
	rc := Start(testDefinition(), 1)

	if adv := NextStep(&rc, domain.ToolCrop); adv != nil {
		t.Fatal("expected nil for a tool the context does not expect")
	}
	if rc.CurrentStepIndex != 1 {
		t.Fatal("mismatch must not mutate the context")
	}

	// Mismatch is not completion.
	if FinishedAt(&rc, domain.ToolCrop) {
		t.Fatal("mismatched tool must not read as finished")
	}
}

func TestNextStepNilAndCorruptContexts(t *testing.T) {
	if NextStep(nil, domain.ToolResize) != nil {
		t.Fatal("expected nil for absent context")
	}
	if FinishedAt(nil, domain.ToolResize) {
		t.Fatal("absent context is not finished")
	}

	rc := Start(testDefinition(), 1)
	rc.CurrentStepIndex = 99
	if NextStep(&rc, domain.ToolCompress) != nil {
		t.Fatal("expected nil for out-of-range index")
	}
	if FinishedAt(&rc, domain.ToolCompress) {
		t.Fatal("out-of-range context is not finished")
	}

	rc.CurrentStepIndex = -1
	if NextStep(&rc, domain.ToolCompress) != nil {
		t.Fatal("expected nil for negative index")
	}
}

func TestAdvanceStepsAreACopy(t *testing.T) {
	rc := Start(testDefinition(), 1)
	adv := NextStep(&rc, domain.ToolCompress)

	adv.Context.Steps[0] = domain.ToolCrop
	if rc.Steps[0] != domain.ToolResize {
		t.Fatal("advanced context must not share its steps slice with the input")
	}
}
