package game

import (
	"github.com/mcourt/quizclash/go/internal/models"
)

// nextMaster picks the participant that should hold the master role for the
// next round. A still-connected round winner takes precedence; otherwise the
// scan walks the roster in join order from the current master, wrapping
// around and skipping disconnected participants. Returns nil when nobody is
// connected.
func nextMaster(roster []*models.Participant, winnerStableID string) *models.Participant {
	if winnerStableID != "" {
		for _, p := range roster {
			if p.StableID == winnerStableID && p.Connected {
				return p
			}
		}
	}

	masterIdx := -1
	for i, p := range roster {
		if p.Role == models.RoleMaster {
			masterIdx = i
			break
		}
	}
	if masterIdx == -1 {
		// No master on the roster; fall back to the first connected
		// participant in join order.
		for _, p := range roster {
			if p.Connected {
				return p
			}
		}
		return nil
	}

	n := len(roster)
	for off := 1; off <= n; off++ {
		p := roster[(masterIdx+off)%n]
		if p.Connected {
			return p
		}
	}
	return nil
}

// applyMaster resets every role to player and promotes the chosen
// participant, re-establishing the exactly-one-master invariant. Returns
// false when chosen is nil.
func applyMaster(roster []*models.Participant, chosen *models.Participant) bool {
	if chosen == nil {
		return false
	}
	for _, p := range roster {
		p.Role = models.RolePlayer
	}
	chosen.Role = models.RoleMaster
	return true
}
