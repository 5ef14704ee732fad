package learning

import "github.com/google/uuid"

func newPathID() string { return "path_" + uuid.NewString() }
func newStepID() string { return "step_" + uuid.NewString() }
func newGoalID() string { return "goal_" + uuid.NewString() }
