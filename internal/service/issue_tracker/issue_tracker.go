package issue_tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"basegraph.app/pulse/internal/monitor"
)

var ErrUserNotFound = errors.New("user not found")

// Tracker is an external issue tracker acting as the monitor's task store and
// identity resolver.
type Tracker interface {
	monitor.TaskStore
	monitor.IdentityResolver

	// VerifyProjects checks that every configured project is reachable with
	// the configured token.
	VerifyProjects(ctx context.Context) ([]Project, error)
}

type Project struct {
	ID         int64
	PathWithNS string
	WebURL     string
}

// issueRef is the task id of a tracker issue: "<project id>/<issue iid>".
type issueRef struct {
	ProjectID int64
	IssueIID  int64
}

func (r issueRef) String() string {
	return fmt.Sprintf("%d/%d", r.ProjectID, r.IssueIID)
}

func parseIssueRef(taskID string) (issueRef, error) {
	project, iid, ok := strings.Cut(taskID, "/")
	if !ok {
		return issueRef{}, fmt.Errorf("task id %q: want <project>/<iid>", taskID)
	}
	p, err := strconv.ParseInt(project, 10, 64)
	if err != nil {
		return issueRef{}, fmt.Errorf("task id %q: project: %w", taskID, err)
	}
	i, err := strconv.ParseInt(iid, 10, 64)
	if err != nil {
		return issueRef{}, fmt.Errorf("task id %q: iid: %w", taskID, err)
	}
	return issueRef{ProjectID: p, IssueIID: i}, nil
}
