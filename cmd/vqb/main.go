package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vqbank/vqb/internal/api"
	appI18n "github.com/vqbank/vqb/internal/i18n"
	"github.com/vqbank/vqb/internal/mirror"
	"github.com/vqbank/vqb/internal/model"
	"github.com/vqbank/vqb/internal/runner"
	"github.com/vqbank/vqb/internal/session"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vqb",
		Short: "Virtual Question Bank terminal client",
	}

	exam := examCmd()
	root.AddCommand(
		loginCmd(), logoutCmd(), whoamiCmd(),
		subjectsCmd(), topicsCmd(), questionsCmd(),
		exam, practiceCmd(), resultsCmd(),
		notificationsCmd(), supportCmd(),
	)

	return root
}

// commonFlags are shared by every subcommand and resolvable via VQB_* env
// variables or the config file.
func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base-url", "http://localhost:8000/api", "Backend base URL")
	f.String("db", "vqb.db", "Local SQLite database path")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token locally",
		RunE:  runLogin,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("email", "e", "", "Account email (required)")
	f.StringP("password", "p", "", "Account password (or set VQB_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Log out and discard the stored token",
		RunE:  runLogout,
	}
	commonFlags(cmd)
	return cmd
}

func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE:  runWhoami,
	}
	commonFlags(cmd)
	return cmd
}

func subjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List subjects in the question bank",
		RunE:  runSubjects,
	}
	commonFlags(cmd)
	return cmd
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics of a subject",
		RunE:  runTopics,
	}
	commonFlags(cmd)
	cmd.Flags().StringP("subject", "s", "", "Subject id (required)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Browse the question bank",
		RunE:  runQuestions,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("search", "", "Full-text search term")
	f.StringP("subject", "s", "", "Filter by subject id")
	f.StringP("topic", "t", "", "Filter by topic id")
	f.StringP("difficulty", "d", "", "Filter by difficulty (All, Easy, Medium, Hard)")
	f.String("cursor", "", "Pagination cursor from a previous page")
	return cmd
}

func examCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Take a timed exam (resumes an interrupted attempt first)",
		RunE:  runExam,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("subject", "s", "", "Subject id")
	f.StringSliceP("topics", "t", nil, "Topic ids (repeatable)")
	f.Int("duration", 10, "Exam duration in minutes (1-60)")
	f.IntP("num-questions", "n", 10, "Number of questions")
	f.String("type", string(model.QuestionTypeMCQ), "Question type (MCQ, Descriptive, Both)")
	f.StringP("difficulty", "d", string(model.DifficultyAll), "Difficulty (All, Easy, Medium, Hard)")
	return cmd
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Practice questions untimed with instant grading",
		RunE:  runPractice,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("subject", "s", "", "Filter by subject id")
	f.StringP("topic", "t", "", "Filter by topic id")
	f.StringP("difficulty", "d", "", "Filter by difficulty")
	f.String("search", "", "Full-text search term")
	return cmd
}

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show past exam results",
		RunE:  runResults,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("cursor", "", "Pagination cursor from a previous page")
	f.String("detail", "", "Exam session id to show the graded breakdown for")
	return cmd
}

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		RunE:  runNotifications,
	}
	commonFlags(cmd)
	cmd.Flags().String("mark-read", "", "Notification id to mark as read")
	return cmd
}

func supportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "File a support request",
		RunE:  runSupport,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("subject", "", "Request subject (required)")
	f.StringP("message", "m", "", "Request message (required)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("VQB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("vqb")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/vqb")
	v.AddConfigPath("/etc/vqb")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// env is the shared per-command setup: config, localized context, local
// store, and an API client carrying the stored token.
type env struct {
	v      *viper.Viper
	ctx    context.Context
	store  *mirror.Store
	client *api.Client
}

func newEnv(cmd *cobra.Command) (*env, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))

	store, err := mirror.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	token, err := store.Token()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read stored token: %w", err)
	}

	return &env{
		v:      v,
		ctx:    ctx,
		store:  store,
		client: api.New(v.GetString("base-url"), token),
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		slog.Warn("close local database", "error", err)
	}
}

// requireLogin checks the stored token locally before any authenticated
// call, so an expired session fails fast with the login hint.
func (e *env) requireLogin() error {
	token, err := e.store.Token()
	if err != nil {
		return err
	}
	if api.TokenExpired(token, time.Now()) {
		return fmt.Errorf("%s", appI18n.T(e.ctx, "LoginRequired"))
	}
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	password := e.v.GetString("password")
	if password == "" {
		return fmt.Errorf("password is required: set --password or VQB_PASSWORD")
	}

	resp, err := e.client.Login(e.ctx, e.v.GetString("email"), password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := e.store.SaveLogin(resp.Token, resp.User); err != nil {
		return fmt.Errorf("store login: %w", err)
	}

	fmt.Println(appI18n.Td(e.ctx, "LoginSuccess", map[string]any{"Name": resp.User.Name}))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.client.Logout(e.ctx); err != nil && !api.IsUnauthenticated(err) {
		slog.Warn("server-side logout failed", "error", err)
	}
	if err := e.store.ClearLogin(); err != nil {
		return fmt.Errorf("clear stored login: %w", err)
	}
	fmt.Println(appI18n.T(e.ctx, "LoggedOut"))
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	user, err := e.client.Me(e.ctx)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	role := user.Role
	if role == "" {
		role, err = e.client.Role(e.ctx)
		if err != nil {
			return fmt.Errorf("fetch role: %w", err)
		}
	}
	fmt.Printf("%s <%s> (%s)\n", user.Name, user.Email, role)
	return nil
}

func runSubjects(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	subjects, err := e.client.Subjects(e.ctx)
	if err != nil {
		return fmt.Errorf("list subjects: %w", err)
	}
	for _, s := range subjects {
		fmt.Printf("%s  %s\n", s.ID, s.Name)
	}
	return nil
}

func runTopics(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	topics, err := e.client.Topics(e.ctx, e.v.GetString("subject"))
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	for _, t := range topics {
		fmt.Printf("%s  %s\n", t.ID, t.Name)
	}
	return nil
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	page, err := e.client.Questions(e.ctx, api.QuestionFilter{
		Search:     e.v.GetString("search"),
		Difficulty: model.Difficulty(e.v.GetString("difficulty")),
		SubjectID:  e.v.GetString("subject"),
		TopicID:    e.v.GetString("topic"),
		Cursor:     e.v.GetString("cursor"),
	})
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}

	for _, q := range page.Questions {
		fmt.Printf("[%s] (%s, %s) %s\n", q.ID, q.QuestionType, q.Difficulty, q.QuestionText)
		for _, opt := range q.Options {
			fmt.Printf("    - %s\n", opt)
		}
	}
	if page.NextCursor != "" {
		fmt.Printf("\nmore available: rerun with --cursor %s\n", page.NextCursor)
	}
	return nil
}

func runExam(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	// A subject means a new exam request; without one only a mirrored
	// attempt can be resumed.
	var req *model.ExamRequest
	if subject := e.v.GetString("subject"); subject != "" {
		req = &model.ExamRequest{
			SubjectID:      subject,
			SelectedTopics: e.v.GetStringSlice("topics"),
			Duration:       e.v.GetInt("duration"),
			TotalQuestions: e.v.GetInt("num-questions"),
			QuestionType:   model.QuestionType(e.v.GetString("type")),
			Difficulty:     model.Difficulty(e.v.GetString("difficulty")),
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid exam request: %w", err)
		}
	}

	guard := runner.NewSignalGuard(os.Stdout)
	ctrl := session.NewController(e.client, e.store, guard, slog.Default())
	r := runner.New(ctrl, os.Stdin, os.Stdout)
	return r.Run(e.ctx, req)
}

func runPractice(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	page, err := e.client.Questions(e.ctx, api.QuestionFilter{
		Search:     e.v.GetString("search"),
		Difficulty: model.Difficulty(e.v.GetString("difficulty")),
		SubjectID:  e.v.GetString("subject"),
		TopicID:    e.v.GetString("topic"),
	})
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	if len(page.Questions) == 0 {
		fmt.Println("no questions match the given filters")
		return nil
	}
	return runner.Practice(e.ctx, e.client, page.Questions, os.Stdin, os.Stdout)
}

func runResults(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	if sessionID := e.v.GetString("detail"); sessionID != "" {
		detail, err := e.client.DetailResult(e.ctx, sessionID)
		if err != nil {
			return fmt.Errorf("fetch detail result: %w", err)
		}
		printDetailResult(detail)
		return nil
	}

	page, err := e.client.Results(e.ctx, e.v.GetString("cursor"))
	if err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}
	for _, row := range page.Results {
		verdict := "FAIL"
		if row.IsPass {
			verdict = "PASS"
		}
		fmt.Printf("%s  %-20s %-30s %6.1f%%  %s\n",
			row.ResultID, session.FormatDateTime(row.Date), row.SubjectName, row.Percentage, verdict)
	}
	if page.NextCursor != "" {
		fmt.Printf("\nmore available: rerun with --cursor %s\n", page.NextCursor)
	}
	return nil
}

func printDetailResult(detail *model.DetailResult) {
	fmt.Printf("%s (%s) — %s\n", detail.Subject.Name, strings.Join(detail.TopicNames(), ", "), detail.Status)
	fmt.Printf("started %s", session.FormatDateTime(detail.StartTime))
	if detail.EndTime != nil {
		fmt.Printf(", finished %s", session.FormatDateTime(*detail.EndTime))
	}
	if detail.TimeTaken != "" {
		fmt.Printf(", took %s", detail.TimeTaken)
	}
	fmt.Println()

	for i, qa := range detail.Questions {
		fmt.Printf("\n%d. %s\n", i+1, qa.Question.QuestionText)
		answer := qa.UserAnswer
		if answer == "" {
			answer = "-"
		}
		fmt.Printf("   your answer: %s\n", answer)
		if qa.IsCorrect != nil {
			if *qa.IsCorrect {
				fmt.Println("   verdict: correct")
			} else {
				fmt.Println("   verdict: incorrect")
				if qa.Question.CorrectAnswer != "" {
					fmt.Printf("   correct answer: %s\n", qa.Question.CorrectAnswer)
				}
			}
		}
		if qa.Feedback != "" {
			fmt.Printf("   feedback: %s\n", qa.Feedback)
		}
		if qa.Question.Explanation != "" {
			fmt.Printf("   explanation: %s\n", qa.Question.Explanation)
		}
	}
}

func runNotifications(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	if id := e.v.GetString("mark-read"); id != "" {
		if err := e.client.MarkNotificationRead(e.ctx, id); err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
	}

	userID, err := e.store.UserID()
	if err != nil {
		return err
	}
	list, err := e.client.Notifications(e.ctx)
	if err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}

	unread := 0
	for _, n := range list {
		marker := " "
		if !n.ReadBy(userID) {
			marker = "*"
			unread++
		}
		fmt.Printf("%s %s  %s: %s\n", marker, n.ID, n.Title, n.Message)
	}

	// The server's unread flag is authoritative; the local count only
	// covers the notifications on this page.
	hasUnread, err := e.client.HasUnread(e.ctx)
	if err != nil {
		return fmt.Errorf("check unread notifications: %w", err)
	}
	if hasUnread {
		fmt.Println(appI18n.Tp(e.ctx, "UnreadNotifications", unread))
	}
	return nil
}

func runSupport(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	msg, err := e.client.CreateSupportRequest(e.ctx, model.SupportRequest{
		Subject:     e.v.GetString("subject"),
		MessageText: e.v.GetString("message"),
	})
	if err != nil {
		return fmt.Errorf("create support request: %w", err)
	}
	if msg == "" {
		msg = appI18n.T(e.ctx, "SupportCreated")
	}
	fmt.Println(msg)
	return nil
}
