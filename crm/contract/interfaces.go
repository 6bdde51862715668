package contract

import "context"

// Adapter is the CRUD contract every CRM backend implements. Methods never
// return Go errors; every outcome, including faults, is carried by Result.
type Adapter interface {
	System() string
	Search(ctx context.Context, query string) Result
	CreateContact(ctx context.Context, in ContactInput) Result
	CreateTask(ctx context.Context, in TaskInput) Result
	CreateNote(ctx context.Context, in NoteInput) Result
	UpdateEntity(ctx context.Context, target string, entityType EntityType, fields map[string]any) Result
	DeleteItem(ctx context.Context, itemType ItemType, id string) Result
	GetDetails(ctx context.Context, id string) Result
}
