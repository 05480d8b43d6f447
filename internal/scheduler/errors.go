package scheduler

import "fmt"

// TaskNotFoundError is returned for operations on an unregistered task name.
type TaskNotFoundError struct {
	Name string
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Name)
}
