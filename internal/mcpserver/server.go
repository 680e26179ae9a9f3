// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes daybook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/datekey"
	"github.com/starford/daybook/internal/identity"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/planner"
)

// Server wraps the MCP server with daybook tools. Tools act as the identity
// currently held by auth.
type Server struct {
	mcp    *server.MCPServer
	svc    *planner.Service
	auth   *identity.Auth
	signIn bool
	logger *slog.Logger
}

// New creates a new MCP server with all daybook tools registered. When
// signIn is false the sign_in tool is refused and auth keeps its initial
// identity.
func New(svc *planner.Service, auth *identity.Auth, signIn bool, logger *slog.Logger) *Server {
	s := &Server{svc: svc, auth: auth, signIn: signIn, logger: logger}

	auth.OnIdentityChange(func(prev, next *identity.Identity) {
		if prev != nil {
			svc.IdentityEnded(prev.ID)
		}
	})

	s.mcp = server.NewMCPServer(
		"Daybook",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_day",
		mcp.WithDescription("List the notes and jobs of one day, with the day's quote total."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key YYYY-MM-DD or a phrase such as 'tomorrow'")),
		mcp.WithString("kind", mcp.Description("Optional: 'note' or 'job' (empty for both)")),
	), s.listDay)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Append a free-text note to a day. Blank text is rejected."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key YYYY-MM-DD or a phrase such as 'tomorrow'")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("add_job",
		mcp.WithDescription("Append a job to a day. Read the record format first via "+
			"the record_format tool or the "+RecordFormatURI+" resource."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key YYYY-MM-DD or a phrase such as 'tomorrow'")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Job title")),
		mcp.WithString("location", mcp.Description("Where the job takes place")),
		mcp.WithString("quote", mcp.Description("Quoted amount as free text, e.g. $1,250.50")),
		mcp.WithString("tools", mcp.Description("Tools to bring")),
	), s.addJob)

	s.mcp.AddTool(mcp.NewTool("remove_record",
		mcp.WithDescription("Remove a note or job from a day. Unknown ids are ignored."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key YYYY-MM-DD or a phrase such as 'tomorrow'")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("'note' or 'job'")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.removeRecord)

	s.mcp.AddTool(mcp.NewTool("advance_job_status",
		mcp.WithDescription("Move a job to the next status of the cycle, wrapping after the last."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key YYYY-MM-DD or a phrase such as 'tomorrow'")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Job id")),
	), s.advanceJobStatus)

	s.mcp.AddTool(mcp.NewTool("week_summary",
		mcp.WithDescription("Summarize the Monday-start week around a date with per-day and week quote totals."),
		mcp.WithString("date", mcp.Description("Anchor date (empty for today)")),
		mcp.WithString("kind", mcp.Description("'job' (default) or 'note'")),
	), s.weekSummary)

	s.mcp.AddTool(mcp.NewTool("record_format",
		mcp.WithDescription("Returns the daybook record format. "+
			"Call this before adding jobs to get quotes and statuses right."),
	), s.recordFormat)

	s.mcp.AddTool(mcp.NewTool("sign_in",
		mcp.WithDescription("Sign in; later tools act on the signed-in user's days."),
		mcp.WithString("method", mcp.Required(), mcp.Description("'anonymous', 'email' or 'token'")),
		mcp.WithString("email", mcp.Description("Email for the email method")),
		mcp.WithString("password", mcp.Description("Password for the email method")),
		mcp.WithString("token", mcp.Description("Access token for the token method")),
	), s.signInTool)

	s.mcp.AddTool(mcp.NewTool("sign_out",
		mcp.WithDescription("Sign out the current user."),
	), s.signOutTool)

	s.mcp.AddTool(mcp.NewTool("whoami",
		mcp.WithDescription("Show the identity tools currently act as."),
	), s.whoami)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Record Format",
			mcp.WithResourceDescription("How notes, jobs, quotes and statuses are stored."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optString(req mcp.CallToolRequest, name string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return ""
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) owner() (string, error) {
	ident, ok := s.auth.CurrentIdentity()
	if !ok {
		return "", errors.New("not signed in: call sign_in first")
	}
	return ident.ID, nil
}

// dayArgs resolves the owner and the "date" argument.
func (s *Server) dayArgs(req mcp.CallToolRequest) (owner, key, label string, err error) {
	if owner, err = s.owner(); err != nil {
		return "", "", "", err
	}
	input, err := req.RequireString("date")
	if err != nil {
		return "", "", "", err
	}
	day, err := s.svc.ParseDay(input)
	if err != nil {
		return "", "", "", err
	}
	return owner, datekey.Format(day), datekey.Label(day), nil
}

func parseKind(req mcp.CallToolRequest) (models.Kind, error) {
	raw := optString(req, "kind")
	if raw == "" {
		return "", nil
	}
	return models.ParseKind(raw)
}

type dayView struct {
	Key      string        `json:"key"`
	Label    string        `json:"label"`
	Notes    []models.Note `json:"notes,omitempty"`
	Jobs     []models.Job  `json:"jobs,omitempty"`
	DayTotal *models.Money `json:"dayTotal,omitempty"`
}

func jobsView(key, label string, jobs []models.Job) dayView {
	var total models.Money
	for _, j := range jobs {
		total = total.Add(j.Quote)
	}
	return dayView{Key: key, Label: label, Jobs: jobs, DayTotal: &total}
}

func (s *Server) listDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, key, label, err := s.dayArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := parseKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	view := dayView{Key: key, Label: label}
	if kind != models.KindNote {
		book, err := s.svc.Jobs(ctx, owner)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		view = jobsView(key, label, book.Load(ctx, key))
	}
	if kind != models.KindJob {
		notes, err := s.svc.Notes(owner)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		view.Notes = notes.Load(ctx, key)
	}
	return jsonResult(view), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, key, label, err := s.dayArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note := s.svc.NewNote(text)
	if err := note.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.Notes(owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(dayView{Key: key, Label: label, Notes: notes.Append(ctx, key, note)}), nil
}

func (s *Server) addJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, key, label, err := s.dayArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	job, err := s.svc.NewJob(key, planner.JobInput{
		Title:    title,
		Location: optString(req, "location"),
		Quote:    optString(req, "quote"),
		Tools:    optString(req, "tools"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	book, err := s.svc.Jobs(ctx, owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(jobsView(key, label, book.Append(ctx, key, job))), nil
}

func (s *Server) removeRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, key, label, err := s.dayArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := req.RequireString("kind"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := parseKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if kind == models.KindNote {
		notes, err := s.svc.Notes(owner)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(dayView{Key: key, Label: label, Notes: notes.Remove(ctx, key, models.ID(id))}), nil
	}
	book, err := s.svc.Jobs(ctx, owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(jobsView(key, label, book.Remove(ctx, key, models.ID(id)))), nil
}

func (s *Server) advanceJobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, key, label, err := s.dayArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	book, err := s.svc.Jobs(ctx, owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !slices.ContainsFunc(book.Load(ctx, key), func(j models.Job) bool { return j.ID == models.ID(id) }) {
		return mcp.NewToolResultError(fmt.Sprintf("no job %s on %s", id, key)), nil
	}
	return jsonResult(jobsView(key, label, book.AdvanceStatus(ctx, key, models.ID(id)))), nil
}

func (s *Server) weekSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := s.owner()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	anchor, err := s.svc.ParseDay(optString(req, "date"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := parseKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if kind == models.KindNote {
		week, err := s.svc.NotesWeek(ctx, owner, anchor)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(week), nil
	}
	week, err := s.svc.JobsWeek(ctx, owner, anchor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(week), nil
}

func (s *Server) recordFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

func (s *Server) signInTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.signIn {
		return mcp.NewToolResultError("sign-in is disabled; tools act as the configured owner"), nil
	}
	raw, err := req.RequireString("method")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	method, err := identity.ParseMethod(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ident, err := s.auth.SignIn(ctx, method, identity.Credentials{
		Email:    optString(req, "email"),
		Password: optString(req, "password"),
		Token:    optString(req, "token"),
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrInvalidCredentials) && !errors.Is(err, apperr.ErrUnsupported) &&
			!errors.Is(err, apperr.ErrValidation) {
			s.logger.Error("mcp sign in failed", slog.String("error", err.Error()))
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ident), nil
}

func (s *Server) signOutTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.signIn {
		return mcp.NewToolResultError("sign-in is disabled; tools act as the configured owner"), nil
	}
	if err := s.auth.SignOut(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("signed out"), nil
}

func (s *Server) whoami(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ident, ok := s.auth.CurrentIdentity()
	if !ok {
		return mcp.NewToolResultText("signed out"), nil
	}
	return jsonResult(ident), nil
}
