package main

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestStageSelection_All(t *testing.T) {
	for _, arg := range []string{"", "all"} {
		b, s, g, err := stageSelection(arg)
		if err != nil {
			t.Fatalf("stageSelection(%q) returned error: %v", arg, err)
		}
		if !b || !s || !g {
			t.Errorf("stageSelection(%q) = %v %v %v, want all true", arg, b, s, g)
		}
	}
}

func TestStageSelection_Bronze(t *testing.T) {
	b, s, g, err := stageSelection("bronze")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b || s || g {
		t.Errorf("stageSelection(bronze) = %v %v %v, want true false false", b, s, g)
	}
}

func TestStageSelection_Silver(t *testing.T) {
	b, s, g, err := stageSelection("silver")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b || !s || g {
		t.Errorf("stageSelection(silver) = %v %v %v, want false true false", b, s, g)
	}
}

func TestStageSelection_Gold(t *testing.T) {
	b, s, g, err := stageSelection("gold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b || s || !g {
		t.Errorf("stageSelection(gold) = %v %v %v, want false false true", b, s, g)
	}
}

func TestStageSelection_Unknown(t *testing.T) {
	if _, _, _, err := stageSelection("platinum"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestApplyLogLevel_Valid(t *testing.T) {
	logger := applyLogLevel(zerolog.Nop(), "warn")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %s, want warn", logger.GetLevel())
	}
}

func TestApplyLogLevel_Invalid(t *testing.T) {
	base := zerolog.Nop().Level(zerolog.InfoLevel)
	logger := applyLogLevel(base, "nonsense")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %s, want info unchanged", logger.GetLevel())
	}
}
