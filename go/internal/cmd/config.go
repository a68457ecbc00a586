package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcourt/quizclash/go/internal/game"
)

// GameTuning is the optional YAML override for the round lifecycle knobs.
type GameTuning struct {
	QuestionDurationSec    int `yaml:"question_duration_sec"`
	AwaitingMasterSec      int `yaml:"awaiting_master_sec"`
	DisconnectGraceSec     int `yaml:"disconnect_grace_sec"`
	MaxAttempts            int `yaml:"max_attempts"`
	PointsPerCorrectGuess  int `yaml:"points_per_correct_guess"`
	MinParticipantsToStart int `yaml:"min_participants_to_start"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadGameConfig returns the default tuning, overridden by the YAML file at
// path when one is given. Zero-valued fields keep their defaults.
func loadGameConfig(path string) (game.Config, error) {
	cfg := game.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read game config file: %w", err)
	}

	var tuning GameTuning
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return cfg, fmt.Errorf("failed to parse game config: %w", err)
	}

	if tuning.QuestionDurationSec > 0 {
		cfg.DefaultQuestionDuration = time.Duration(tuning.QuestionDurationSec) * time.Second
	}
	if tuning.AwaitingMasterSec > 0 {
		cfg.AwaitingMasterWindow = time.Duration(tuning.AwaitingMasterSec) * time.Second
	}
	if tuning.DisconnectGraceSec > 0 {
		cfg.DisconnectGrace = time.Duration(tuning.DisconnectGraceSec) * time.Second
	}
	if tuning.MaxAttempts > 0 {
		cfg.MaxAttempts = tuning.MaxAttempts
	}
	if tuning.PointsPerCorrectGuess > 0 {
		cfg.PointsPerCorrectGuess = tuning.PointsPerCorrectGuess
	}
	if tuning.MinParticipantsToStart > 0 {
		cfg.MinParticipantsToStart = tuning.MinParticipantsToStart
	}
	return cfg, nil
}
