package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/intent"
)

// REST task surface. Everything here is scoped by the authenticated user;
// task ids from other users answer 404.
func registerTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTaskForUser(ctx, intent.CreateTask{
			UserID:             userID,
			Title:              input.Body.Title,
			Description:        input.Body.Description,
			Category:           input.Body.Category,
			Priority:           input.Body.Priority,
			DueDate:            input.Body.DueDate,
			RecurrencePattern:  input.Body.RecurrencePattern,
			RecurrenceInterval: input.Body.RecurrenceInterval,
			Tags:               input.Body.Tags,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"pending,completed,"`
		Priority string `query:"priority" enum:"low,medium,high,critical,"`
		Category string `query:"category"`
		Tag      string `query:"tag"`
		Keyword  string `query:"keyword"`
		Sort     string `query:"sort" enum:"created_desc,priority_desc,due_asc,due_desc,title_asc,"`
		Limit    int    `query:"limit" default:"20"`
		Offset   int    `query:"offset"`
	}) (*struct {
		Body paginatedTasks `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q := domain.QuerySpec{
			Status:   input.Status,
			Priority: input.Priority,
			Category: input.Category,
			Keyword:  input.Keyword,
			Sort:     input.Sort,
			Limit:    input.Limit,
			Offset:   input.Offset,
		}
		if input.Tag != "" {
			q.Tags = []string{input.Tag}
		}
		q.Normalize()
		tasks, err := e.Repo.ListTasks(ctx, userID, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedTasks `json:"body"`
		}{Body: paginatedTasks{Items: mapTasks(tasks), Limit: q.Limit, Offset: q.Offset}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.PatchTask(ctx, userID, input.ID, engine.TaskPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			Notes:       input.Body.Notes,
			Priority:    input.Body.Priority,
			Completed:   input.Body.Completed,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveTask(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/done",
		Summary:     "Complete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		done := true
		t, err := e.PatchTask(ctx, userID, input.ID, engine.TaskPatch{Completed: &done})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tag-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/tags/{tag}",
		Summary:     "Tag task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID  int64  `path:"id"`
		Tag string `path:"tag"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.TagTask(ctx, userID, input.ID, input.Tag)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "untag-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}/tags/{tag}",
		Summary:     "Untag task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID  int64  `path:"id"`
		Tag string `path:"tag"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UntagTask(ctx, userID, input.ID, input.Tag)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}
