package aiqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/marketplace-billing-api/internal/models"
)

func TestDispatcherUnknownTaskType(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Execute(context.Background(), &models.AITask{
		TaskType:  "mystery",
		InputData: "{}",
	})
	require.Error(t, err)
}

func TestDispatcherInvalidInput(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Execute(context.Background(), &models.AITask{
		TaskType:  models.TaskTypeDescription,
		InputData: "не json",
	})
	require.Error(t, err)
}
