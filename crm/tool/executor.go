package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

var ErrUnknownTool = errors.New("unknown tool")

// Executor runs one tool call and returns the rendered result text.
type Executor func(ctx context.Context, tool string, args map[string]any) (string, error)

// Execute dispatches a tool call. Bad arguments become an Invalid result;
// only an unknown tool name is an error.
func (t *Toolkit) Execute(ctx context.Context, tool string, args map[string]any) (contractx.Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	t.logger.Debug().Str("tool", tool).Msg("tool call")

	switch tool {
	case ToolSearchContacts:
		return t.Search(ctx, stringArg(args, "query")), nil
	case ToolCreateContact:
		return t.CreateContact(ctx, contractx.ContactInput{
			FirstName: stringArg(args, "first_name"),
			LastName:  stringArg(args, "last_name"),
			Company:   stringArg(args, "company"),
			Email:     stringArg(args, "email"),
			Phone:     stringArg(args, "phone"),
		}), nil
	case ToolCreateTask:
		return t.CreateTask(ctx, contractx.TaskInput{
			Title:   stringArg(args, "title"),
			Body:    stringArg(args, "body"),
			DueDate: stringArg(args, "due_date"),
			Target:  stringArg(args, "target"),
		}), nil
	case ToolCreateNote:
		return t.CreateNote(ctx, contractx.NoteInput{
			Title:   stringArg(args, "title"),
			Content: stringArg(args, "content"),
			Target:  stringArg(args, "target"),
		}), nil
	case ToolUpdateEntity:
		fields, err := fieldsArg(args["fields"])
		if err != nil {
			return contractx.Invalid(fmt.Sprintf("Update not applied: %v", err), err), nil
		}
		entity := contractx.ParseEntityType(stringArg(args, "entity_type"))
		return t.UpdateEntity(ctx, stringArg(args, "target"), entity, fields), nil
	case ToolGetDetails:
		return t.GetDetails(ctx, stringArg(args, "target")), nil
	case ToolUndo:
		return t.Undo(ctx), nil
	default:
		return contractx.Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
}

// Executor adapts Execute to plain text for agent loops.
func (t *Toolkit) Executor() Executor {
	return func(ctx context.Context, tool string, args map[string]any) (string, error) {
		res, err := t.Execute(ctx, tool, args)
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
}

// ExecuteCall runs a Chat Completions tool call and answers with the tool
// message to append to the conversation. Failures are reported in the
// message text so the model can react.
func (t *Toolkit) ExecuteCall(ctx context.Context, call openai.ChatCompletionMessageToolCall) openai.ChatCompletionMessageParamUnion {
	var args map[string]any
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			text := contractx.Invalid(fmt.Sprintf("Arguments of %s are not valid JSON", call.Function.Name), err).Text()
			return openai.ToolMessage(text, call.ID)
		}
	}

	res, err := t.Execute(ctx, call.Function.Name, args)
	if err != nil {
		return openai.ToolMessage(contractx.MarkFailure+" "+err.Error(), call.ID)
	}
	return openai.ToolMessage(res.Text(), call.ID)
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// fieldsArg accepts an object or a JSON-encoded object, which some models
// send instead.
func fieldsArg(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: fields are required", contractx.ErrValidation)
	case map[string]any:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, fmt.Errorf("%w: fields are required", contractx.ErrValidation)
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("%w: fields must be a JSON object", contractx.ErrValidation)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: fields must be an object, got %T", contractx.ErrValidation, raw)
	}
}
