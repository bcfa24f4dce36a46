package store

import "qms/walkin-service/internal/models"

var transitionMap = map[models.Status][]models.Status{
	models.StatusWaiting:    {models.StatusInProgress, models.StatusCancelled, models.StatusNoShow},
	models.StatusInProgress: {models.StatusCompleted},
}

// ValidTransition reports whether an entry in from may move to to. Staying in
// the same status is always allowed.
func ValidTransition(from, to models.Status) bool {
	if from == to {
		return true
	}
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
