package issue_tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/pulse/internal/model"
)

type GitLabConfig struct {
	BaseURL           string
	Token             string
	ProjectIDs        []int64
	CompletedLookback time.Duration
}

type gitLabTracker struct {
	client     *gitlab.Client
	projectIDs []int64
	lookback   time.Duration
	now        func() time.Time

	// botID is learned from the first Resolve call and used to count bot notes.
	botID string
}

func NewGitLabTracker(cfg GitLabConfig) (Tracker, error) {
	client, err := newClient(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitLabTracker{
		client:     client,
		projectIDs: cfg.ProjectIDs,
		lookback:   cfg.CompletedLookback,
		now:        time.Now,
	}, nil
}

func newClient(baseURL, token string) (*gitlab.Client, error) {
	if baseURL == "" {
		return gitlab.NewClient(token)
	}
	apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
	return gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
}

// Resolve matches a display name or username, case-insensitively.
func (t *gitLabTracker) Resolve(ctx context.Context, displayName string) (string, string, error) {
	opts := &gitlab.ListUsersOptions{
		Search:      gitlab.Ptr(displayName),
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 100},
	}

	for {
		users, resp, err := t.client.Users.ListUsers(opts, gitlab.WithContext(ctx))
		if err != nil {
			return "", "", fmt.Errorf("searching gitlab users: %w", err)
		}

		for _, u := range users {
			if u == nil {
				continue
			}
			if strings.EqualFold(u.Name, displayName) || strings.EqualFold(u.Username, displayName) {
				id := strconv.FormatInt(u.ID, 10)
				t.botID = id
				return id, u.Name, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return "", "", fmt.Errorf("%w: %q", ErrUserNotFound, displayName)
}

func (t *gitLabTracker) VerifyProjects(ctx context.Context) ([]Project, error) {
	projects := make([]Project, 0, len(t.projectIDs))
	for _, pid := range t.projectIDs {
		p, _, err := t.client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("project %d: %w", pid, err)
		}
		projects = append(projects, Project{
			ID:         p.ID,
			PathWithNS: p.PathWithNamespace,
			WebURL:     p.WebURL,
		})
	}
	return projects, nil
}

// FetchOpenTasks lists opened issues plus issues closed within the lookback
// window across every configured project.
func (t *gitLabTracker) FetchOpenTasks(ctx context.Context) ([]model.TaskSnapshot, error) {
	cutoff := t.now().Add(-t.lookback)
	var tasks []model.TaskSnapshot

	for _, pid := range t.projectIDs {
		opened, err := t.listIssues(ctx, pid, &gitlab.ListProjectIssuesOptions{
			State: gitlab.Ptr("opened"),
		})
		if err != nil {
			return nil, err
		}
		closed, err := t.listIssues(ctx, pid, &gitlab.ListProjectIssuesOptions{
			State:        gitlab.Ptr("closed"),
			UpdatedAfter: gitlab.Ptr(cutoff),
		})
		if err != nil {
			return nil, err
		}

		for _, issue := range append(opened, closed...) {
			if issue.ClosedAt != nil && issue.ClosedAt.Before(cutoff) {
				continue
			}
			task := mapIssue(issue)
			if err := t.countBotNotes(ctx, &task); err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

func (t *gitLabTracker) listIssues(ctx context.Context, projectID int64, opts *gitlab.ListProjectIssuesOptions) ([]*gitlab.Issue, error) {
	opts.ListOptions = gitlab.ListOptions{Page: 1, PerPage: 100}
	var issues []*gitlab.Issue

	for {
		page, resp, err := t.client.Issues.ListProjectIssues(projectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing issues for project %d: %w", projectID, err)
		}
		for _, issue := range page {
			if issue != nil {
				issues = append(issues, issue)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return issues, nil
}

func (t *gitLabTracker) countBotNotes(ctx context.Context, task *model.TaskSnapshot) error {
	if t.botID == "" {
		return nil
	}
	comments, err := t.FetchComments(ctx, task.ID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.AuthorID != t.botID {
			continue
		}
		task.BotCommentCount++
		if task.LastBotCommentAt == nil || c.CreatedAt.After(*task.LastBotCommentAt) {
			at := c.CreatedAt
			task.LastBotCommentAt = &at
		}
	}
	return nil
}

// FetchComments returns user notes oldest-first. System notes (label changes,
// assignments) are not part of the conversation.
func (t *gitLabTracker) FetchComments(ctx context.Context, taskID string) ([]model.CommentRecord, error) {
	ref, err := parseIssueRef(taskID)
	if err != nil {
		return nil, err
	}

	opts := &gitlab.ListIssueNotesOptions{
		OrderBy:     gitlab.Ptr("created_at"),
		Sort:        gitlab.Ptr("asc"),
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 100},
	}

	var comments []model.CommentRecord
	for {
		notes, resp, err := t.client.Notes.ListIssueNotes(ref.ProjectID, ref.IssueIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing notes for %s: %w", taskID, err)
		}

		for _, n := range notes {
			if n == nil || n.System {
				continue
			}
			comments = append(comments, mapNote(taskID, n))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// AppendComment posts a new note as the token's user. GitLab stamps the note
// with its own creation time.
func (t *gitLabTracker) AppendComment(ctx context.Context, taskID, authorID, body string, at time.Time) error {
	ref, err := parseIssueRef(taskID)
	if err != nil {
		return err
	}

	note, _, err := t.client.Notes.CreateIssueNote(ref.ProjectID, ref.IssueIID, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("creating note on %s: %w", taskID, err)
	}

	if note != nil && authorID != "" && strconv.FormatInt(note.Author.ID, 10) != authorID {
		slog.WarnContext(ctx, "gitlab note posted under a different identity than the resolved bot",
			"task_id", taskID,
			"expected_author", authorID,
			"actual_author", note.Author.ID)
	}
	return nil
}

func mapIssue(issue *gitlab.Issue) model.TaskSnapshot {
	task := model.TaskSnapshot{
		ID:     issueRef{ProjectID: issue.ProjectID, IssueIID: issue.IID}.String(),
		Title:  issue.Title,
		Status: model.TaskStatusOpen,
	}

	assignee := issue.Assignee
	if assignee == nil && len(issue.Assignees) > 0 {
		assignee = issue.Assignees[0]
	}
	if assignee != nil {
		task.AssigneeID = strconv.FormatInt(assignee.ID, 10)
		task.AssigneeName = assignee.Name
	}

	if issue.DueDate != nil {
		due := time.Time(*issue.DueDate)
		task.DueAt = &due
	}

	if issue.State == "closed" {
		task.Status = model.TaskStatusCompleted
		if issue.ClosedAt != nil {
			closed := *issue.ClosedAt
			task.CompletedAt = &closed
		}
	}

	return task
}

func mapNote(taskID string, n *gitlab.Note) model.CommentRecord {
	c := model.CommentRecord{
		ID:         strconv.FormatInt(n.ID, 10),
		TaskID:     taskID,
		AuthorID:   strconv.FormatInt(n.Author.ID, 10),
		AuthorName: n.Author.Name,
		Body:       n.Body,
	}
	createdAt := n.CreatedAt
	if createdAt == nil {
		createdAt = n.UpdatedAt
	}
	if createdAt != nil {
		c.CreatedAt = *createdAt
	}
	return c
}
