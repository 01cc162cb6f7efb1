package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/taskflow/internal/client"
	"github.com/gosuda/taskflow/internal/domain"
	"github.com/gosuda/taskflow/internal/kanban"
)

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.printToken(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.api.Register(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			a.printToken(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (8 characters or more)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) printToken(res *client.AuthResult) {
	who := ""
	if res.User != nil {
		who = " as " + res.User.Email
	}
	a.println(ok("signed in" + who))
	a.println(mutedStyle.Render("export TASKFLOW_TOKEN=") + res.Token)
}

func boardsCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List the boards you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch {
				return a.watchBoards(cmd.Context())
			}
			boards, err := a.api.ListBoards(cmd.Context())
			if err != nil {
				return err
			}
			a.println(renderBoards(boards))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep the list open and live")
	return cmd
}

func createBoardCmd(a *app) *cobra.Command {
	var description, color string
	cmd := &cobra.Command{
		Use:   "create-board TITLE",
		Short: "Create a board with the default columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.api.CreateBoard(cmd.Context(), args[0], description, color)
			if err != nil {
				return err
			}
			a.println(ok(fmt.Sprintf("created board %s (%s)", b.Title, b.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Board description")
	cmd.Flags().StringVar(&color, "color", "", "Board color, e.g. #3b82f6")
	return cmd
}

// viewFlags are the filter and sort options shared by show and watch.
type viewFlags struct {
	query      string
	priorities []string
	assignee   string
	due        string
	sortBy     string
	desc       bool
}

func (f *viewFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Only tasks whose title or description contains this text")
	cmd.Flags().StringSliceVar(&f.priorities, "priority", nil, "Only these priorities (low, medium, high, urgent)")
	cmd.Flags().StringVar(&f.assignee, "assignee", string(kanban.AssigneeAll), "all, me or unassigned")
	cmd.Flags().StringVar(&f.due, "due", string(kanban.DueAll), "all, overdue, today, week or no_date")
	cmd.Flags().StringVar(&f.sortBy, "sort", string(kanban.SortPosition), "position, priority, due_date, created_at or title")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Reverse the sort order")
}

func (f *viewFlags) filter() (kanban.Filter, kanban.Sort, error) {
	filter := kanban.Filter{
		Query:    f.query,
		Assignee: kanban.AssigneeFilter(f.assignee),
		Due:      kanban.DueFilter(f.due),
	}
	for _, raw := range f.priorities {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			return kanban.Filter{}, kanban.Sort{}, fmt.Errorf("priority %q: %w", raw, err)
		}
		filter.Priorities = append(filter.Priorities, p)
	}
	switch filter.Assignee {
	case kanban.AssigneeAll, kanban.AssigneeMe, kanban.AssigneeUnassigned:
	default:
		return kanban.Filter{}, kanban.Sort{}, fmt.Errorf("unknown assignee filter %q", f.assignee)
	}
	switch filter.Due {
	case kanban.DueAll, kanban.DueOverdue, kanban.DueToday, kanban.DueWeek, kanban.DueNone:
	default:
		return kanban.Filter{}, kanban.Sort{}, fmt.Errorf("unknown due filter %q", f.due)
	}
	order := kanban.Sort{Field: kanban.SortField(f.sortBy), Desc: f.desc}
	switch order.Field {
	case kanban.SortPosition, kanban.SortPriority, kanban.SortDueDate, kanban.SortCreatedAt, kanban.SortTitle:
	default:
		return kanban.Filter{}, kanban.Sort{}, fmt.Errorf("unknown sort field %q", f.sortBy)
	}
	return filter, order, nil
}

func showCmd(a *app) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "show BOARD",
		Short: "Print a board's columns and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, order, err := vf.filter()
			if err != nil {
				return err
			}
			userID, err := a.userID()
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			snap := kanban.Project(s.Snapshot(), filter, order, userID, now)
			a.println(renderBoard(boardView{Snap: snap, Now: now}))
			return nil
		},
	}
	vf.bind(cmd)
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats BOARD",
		Short: "Show progress and due-date statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			a.println(renderStats(s.Stats(time.Now())))
			return nil
		},
	}
}

func addColumnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-column BOARD TITLE",
		Short: "Append a column to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			col, err := s.AddColumn(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			a.println(ok("added column " + col.Title))
			return nil
		},
	}
}

func renameColumnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-column BOARD COLUMN TITLE",
		Short: "Rename a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			col, err := resolveColumn(s.Snapshot(), args[1])
			if err != nil {
				return err
			}
			renamed, err := s.RenameColumn(cmd.Context(), col.ID, args[2])
			if err != nil {
				return err
			}
			a.println(ok(fmt.Sprintf("renamed %s to %s", col.Title, renamed.Title)))
			return nil
		},
	}
}

func addTaskCmd(a *app) *cobra.Command {
	var description, priority, due string
	var assignMe bool
	cmd := &cobra.Command{
		Use:   "add-task BOARD COLUMN TITLE",
		Short: "Add a task at the end of a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParsePriority(priority)
			if err != nil {
				return fmt.Errorf("priority %q: %w", priority, err)
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			col, err := resolveColumn(s.Snapshot(), args[1])
			if err != nil {
				return err
			}

			draft := client.TaskDraft{
				ColumnID:    col.ID,
				Title:       args[2],
				Description: description,
				Priority:    p,
				DueDate:     dueDate,
			}
			if assignMe {
				userID, err := a.userID()
				if err != nil {
					return err
				}
				draft.AssignedTo = &userID
			}
			t, err := s.AddTask(cmd.Context(), draft)
			if err != nil {
				return err
			}
			a.println(ok(fmt.Sprintf("added %s to %s", t.Title, col.Title)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(domain.PriorityMedium), "low, medium, high or urgent")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&assignMe, "assign-me", false, "Assign the task to yourself")
	return cmd
}

func moveCmd(a *app) *cobra.Command {
	var toColumn, onto string
	cmd := &cobra.Command{
		Use:   "move BOARD TASK",
		Short: "Move a task to the end of a column or onto another task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (toColumn == "") == (onto == "") {
				return fmt.Errorf("exactly one of --to-column or --onto is required")
			}
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			snap := s.Snapshot()
			task, err := resolveTask(snap, args[1])
			if err != nil {
				return err
			}
			var target kanban.DropTarget
			if toColumn != "" {
				col, err := resolveColumn(snap, toColumn)
				if err != nil {
					return err
				}
				target = kanban.ColumnTarget(col.ID)
			} else {
				over, err := resolveTask(snap, onto)
				if err != nil {
					return err
				}
				target = kanban.TaskTarget(over.ID)
			}

			m, err := s.MoveTask(cmd.Context(), task.ID, target)
			if err != nil {
				return err
			}
			if m.IsNoop() {
				a.println(mutedStyle.Render("task is already there"))
				return nil
			}
			col := s.Snapshot().Column(m.ToColumn)
			title := m.ToColumn.String()
			if col != nil {
				title = col.Column.Title
			}
			a.println(ok(fmt.Sprintf("moved %s to %s #%d", task.Title, title, m.ToIndex+1)))
			return nil
		},
	}
	cmd.Flags().StringVar(&toColumn, "to-column", "", "Destination column (title or id); the task goes last")
	cmd.Flags().StringVar(&onto, "onto", "", "Task to drop onto (title or id prefix); takes its slot")
	return cmd
}

func archivedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archived BOARD",
		Short: "List archived tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			tasks, err := s.Archived(cmd.Context())
			if err != nil {
				return err
			}
			a.println(renderTasks(tasks, time.Now()))
			return nil
		},
	}
}

func commentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comments BOARD TASK",
		Short: "List a task's comments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			task, err := resolveTask(s.Snapshot(), args[1])
			if err != nil {
				return err
			}
			comments, err := s.Comments(cmd.Context(), task.ID)
			if err != nil {
				return err
			}
			a.println(titleStyle.Render(task.Title))
			a.println(renderComments(comments))
			return nil
		},
	}
}

func commentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "comment BOARD TASK TEXT...",
		Short: "Comment on a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			task, err := resolveTask(s.Snapshot(), args[1])
			if err != nil {
				return err
			}
			if _, err := s.AddComment(cmd.Context(), task.ID, strings.Join(args[2:], " ")); err != nil {
				return err
			}
			a.println(ok("commented on " + task.Title))
			return nil
		},
	}
}

func membersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members BOARD",
		Short: "List board members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			members, err := s.Members(cmd.Context())
			if err != nil {
				return err
			}
			a.println(renderMembers(members))
			return nil
		},
	}
}

func inviteCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "invite BOARD EMAIL",
		Short: "Add a registered user to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if r != domain.RoleAdmin && r != domain.RoleMember {
				return fmt.Errorf("role %q: %w", role, domain.ErrInvalidRole)
			}
			s, err := a.openSession(cmd.Context(), args[0], false, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			m, err := s.InviteMember(cmd.Context(), args[1], r)
			if err != nil {
				return err
			}
			a.println(ok(fmt.Sprintf("invited %s as %s", m.UserEmail, m.Role)))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "admin or member")
	return cmd
}
