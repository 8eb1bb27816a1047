package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vqbank/vqb/internal/model"
)

// accessTokenCookie is the cookie the backend issues on login and expects on
// every authenticated call.
const accessTokenCookie = "accessToken"

// Client talks to the Virtual Question Bank backend. All business logic
// (scoring, persistence, token issuance) lives on the server; the client only
// shapes requests and decodes responses.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the given backend base URL. token may be empty for
// unauthenticated calls such as Login or Subjects.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken replaces the access token used for subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// send performs one HTTP round trip and returns the response plus its body.
// It does not interpret the status code.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: c.token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, data, nil
}

// do sends a request and decodes a 2xx response body into out (which may be
// nil). 401 maps to ErrUnauthenticated; any other non-2xx maps to *Error with
// the server's {message}. Returns the status code for callers that
// distinguish 200 from 201.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	resp, data, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &Error{Status: resp.StatusCode, Message: serverMessage(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// serverMessage extracts the {message} field from an error body, falling back
// to the raw body when it is not JSON.
func serverMessage(data []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &m); err == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(data))
}

// LoginResponse is the outcome of a successful login: the server message, the
// user record, and the access token extracted from the Set-Cookie header.
type LoginResponse struct {
	Message string
	User    model.User
	Token   string
}

// Login exchanges credentials for an access token via POST /users/login.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	resp, data, err := c.send(ctx, http.MethodPost, "/users/login", nil, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: serverMessage(data)}
	}

	var payload struct {
		Message string     `json:"message"`
		User    model.User `json:"user"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	out := &LoginResponse{Message: payload.Message, User: payload.User}
	for _, ck := range resp.Cookies() {
		if ck.Name == accessTokenCookie {
			out.Token = ck.Value
			break
		}
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login succeeded but no %s cookie was set", accessTokenCookie)
	}
	c.token = out.Token
	return out, nil
}

// Logout invalidates the server-side session via POST /users/logout.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/users/logout", nil, nil, nil)
	return err
}

// Me fetches the authenticated user's profile via GET /users/me.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if _, err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Role fetches the authenticated user's role via GET /users/me/role.
func (c *Client) Role(ctx context.Context) (string, error) {
	var out struct {
		Role string `json:"role"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/users/me/role", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Role, nil
}

// Subjects lists all subjects via GET /subjects/.
func (c *Client) Subjects(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	if _, err := c.do(ctx, http.MethodGet, "/subjects/", nil, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// Topics lists the topics of a subject via GET /topics?subjectId=.
func (c *Client) Topics(ctx context.Context, subjectID string) ([]model.Topic, error) {
	q := url.Values{"subjectId": {subjectID}}
	var topics []model.Topic
	if _, err := c.do(ctx, http.MethodGet, "/topics", q, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// QuestionFilter narrows a question-browser page request. Zero values are
// omitted from the query.
type QuestionFilter struct {
	Search     string
	Difficulty model.Difficulty
	SubjectID  string
	TopicID    string
	Cursor     string
}

// QuestionPage is one cursor-paginated page of the question browser.
type QuestionPage struct {
	Questions  []model.Question `json:"questions"`
	NextCursor string           `json:"nextCursor"`
}

// Questions fetches a page of the question browser via
// GET /questions/getQuestions.
func (c *Client) Questions(ctx context.Context, f QuestionFilter) (*QuestionPage, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Difficulty != "" {
		q.Set("difficulty", string(f.Difficulty))
	}
	if f.SubjectID != "" {
		q.Set("subjectId", f.SubjectID)
	}
	if f.TopicID != "" {
		q.Set("topicId", f.TopicID)
	}
	if f.Cursor != "" {
		q.Set("cursor", f.Cursor)
	}

	var page QuestionPage
	if _, err := c.do(ctx, http.MethodGet, "/questions/getQuestions", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Evaluation is the backend's verdict on a single practice answer.
type Evaluation struct {
	IsCorrect bool   `json:"isCorrect"`
	Message   string `json:"message"`
}

// EvaluateResponse grades one practice answer via
// POST /questions/evaluateResponse. Grading itself is server-side.
func (c *Client) EvaluateResponse(ctx context.Context, questionID, answer string) (*Evaluation, error) {
	body := map[string]string{
		"selectedQuestionId": questionID,
		"userAnswer":         answer,
	}
	var ev Evaluation
	if _, err := c.do(ctx, http.MethodPost, "/questions/evaluateResponse", nil, body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// StartExam creates a new exam session via POST /exams/startExam. The backend
// responds 201 with the full populated session, 401 when unauthenticated, or
// 4xx with a message (e.g. not enough questions matching the criteria).
func (c *Client) StartExam(ctx context.Context, req model.ExamRequest) (*model.ExamSession, error) {
	var sess model.ExamSession
	status, err := c.do(ctx, http.MethodPost, "/exams/startExam", nil, req, &sess)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, &Error{Status: status, Message: "unexpected status for startExam"}
	}
	return &sess, nil
}

// FinishOutcome is the result of submitting a finished session. Result is nil
// when the backend accepted the submission without a populated result (200);
// it is set on 201.
type FinishOutcome struct {
	Message string
	Result  *model.Result
}

// FinishExam submits the finalized session via POST /exams/finishExam.
func (c *Client) FinishExam(ctx context.Context, sess *model.ExamSession) (*FinishOutcome, error) {
	body := map[string]*model.ExamSession{"examSession": sess}
	var payload struct {
		Message         string        `json:"message"`
		PopulatedResult *model.Result `json:"populatedResult"`
	}
	status, err := c.do(ctx, http.MethodPost, "/exams/finishExam", nil, body, &payload)
	if err != nil {
		return nil, err
	}

	out := &FinishOutcome{Message: payload.Message}
	if status == http.StatusCreated {
		out.Result = payload.PopulatedResult
	}
	return out, nil
}

// DetailResult fetches the graded per-question breakdown of a session via
// POST /results/detailResult.
func (c *Client) DetailResult(ctx context.Context, sessionID string) (*model.DetailResult, error) {
	body := map[string]string{"examSessionId": sessionID}
	var detail model.DetailResult
	if _, err := c.do(ctx, http.MethodPost, "/results/detailResult", nil, body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ResultPage is one cursor-paginated page of the result history.
type ResultPage struct {
	Results    []model.ResultRow `json:"results"`
	NextCursor string            `json:"nextCursor"`
}

// Results fetches a page of the student's result history via
// POST /results/getResults.
func (c *Client) Results(ctx context.Context, cursor string) (*ResultPage, error) {
	body := map[string]string{}
	if cursor != "" {
		body["cursor"] = cursor
	}
	var page ResultPage
	if _, err := c.do(ctx, http.MethodPost, "/results/getResults", nil, body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Notifications lists the user's notifications via
// GET /notifications/getNotifications.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var list []model.Notification
	if _, err := c.do(ctx, http.MethodGet, "/notifications/getNotifications", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// HasUnread reports whether unread notifications exist via
// GET /notifications/hasUnread.
func (c *Client) HasUnread(ctx context.Context) (bool, error) {
	var out struct {
		HasUnread bool `json:"hasUnread"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/notifications/hasUnread", nil, nil, &out); err != nil {
		return false, err
	}
	return out.HasUnread, nil
}

// MarkNotificationRead marks one notification as read via
// PUT /notifications/updateNotification/markAsRead/{id}.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := "/notifications/updateNotification/markAsRead/" + url.PathEscape(id)
	_, err := c.do(ctx, http.MethodPut, path, nil, nil, nil)
	return err
}

// CreateSupportRequest files a support ticket via POST /support/createRequest
// and returns the server's confirmation message.
func (c *Client) CreateSupportRequest(ctx context.Context, req model.SupportRequest) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/support/createRequest", nil, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
