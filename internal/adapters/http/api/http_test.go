package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/http/api"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/mq/worker"
	"github.com/kasakmasrani/CampusSync-AI/internal/adapters/repository"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/scoring"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/similarity"
	"github.com/kasakmasrani/CampusSync-AI/internal/domain/types"
	"github.com/kasakmasrani/CampusSync-AI/internal/jobs"
	"github.com/kasakmasrani/CampusSync-AI/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// handlers and workers fall back to the global logger
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const testSecret = "test-secret"

// Mock implementations for testing
type mockDeps struct {
	predictErr error
	created    *types.CreateEventRequest
	organizer  uint
	detailErr  error
	registered map[uint]bool
	feedback   []model.Feedback
	peers      []similarity.Peer
	peersErr   error
	lastTop    int
	lastUser   uint
	jobResult  model.JobResult
	jobErr     error
}

func newMockDeps() *mockDeps {
	return &mockDeps{registered: make(map[uint]bool)}
}

func (m *mockDeps) Predict(_ context.Context, in scoring.Input) (scoring.Prediction, error) {
	if m.predictErr != nil {
		return scoring.Prediction{}, m.predictErr
	}
	return scoring.Derive(80, in.MaxCapacity), nil
}

func (m *mockDeps) ListEvents(context.Context) ([]model.Event, error) {
	return []model.Event{{ID: 2, Title: "Later", Date: "2025-05-02"}, {ID: 1, Title: "Sooner", Date: "2025-05-01"}}, nil
}

func (m *mockDeps) CreateEvent(_ context.Context, organizerID uint, req types.CreateEventRequest) (*model.Event, error) {
	m.created, m.organizer = &req, organizerID
	ev := req.Event(organizerID)
	ev.ID = 7
	return ev, nil
}

func (m *mockDeps) EventDetail(_ context.Context, id, viewerID uint) (types.EventDetail, error) {
	if m.detailErr != nil {
		return types.EventDetail{}, m.detailErr
	}
	return types.EventDetail{
		Event:                model.Event{ID: id, Title: "Demo"},
		RegisteredUsersCount: len(m.registered),
		IsRegistered:         m.registered[viewerID],
	}, nil
}

func (m *mockDeps) Register(_ context.Context, _, userID uint) (bool, error) {
	if m.registered[userID] {
		return false, nil
	}
	m.registered[userID] = true
	return true, nil
}

func (m *mockDeps) Unregister(_ context.Context, _, userID uint) error {
	if !m.registered[userID] {
		return fmt.Errorf("unregister: %w", repository.ErrNotRegistered)
	}
	delete(m.registered, userID)
	return nil
}

func (m *mockDeps) ListFeedback(context.Context, uint) ([]model.Feedback, error) {
	return m.feedback, nil
}

func (m *mockDeps) SubmitFeedback(_ context.Context, eventID, userID uint, req types.FeedbackRequest) (*model.Feedback, error) {
	fb := model.Feedback{ID: uint(len(m.feedback) + 1), EventID: eventID, UserID: userID, Rating: req.Rating, Comment: req.Comment, Sentiment: "neutral"}
	m.feedback = append(m.feedback, fb)
	return &fb, nil
}

func (m *mockDeps) SimilarStudents(_ context.Context, userID uint, topN int) ([]similarity.Peer, error) {
	m.lastUser, m.lastTop = userID, topN
	return m.peers, m.peersErr
}

func (m *mockDeps) RunJob(_ context.Context, kind model.JobKind) (model.JobResult, error) {
	res := m.jobResult
	res.Kind = kind
	return res, m.jobErr
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true, "events": 2}
}

func token(userID uint, role model.Role) string {
	claims := api.Claims{
		Role: string(role),
		Name: "user" + strconv.Itoa(int(userID)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(userID)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func newTestServer(deps *mockDeps, opts ...api.Option) http.Handler {
	auth, err := api.NewAuthenticator(testSecret, "")
	if err != nil {
		panic(err)
	}
	base := []api.Option{api.WithAuthenticator(auth), api.WithLogger(logger.Nop())}
	return api.NewServer(deps, mockStats{}, append(base, opts...)...).Routes(context.Background())
}

func do(h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code   string           `json:"code"`
	Detail string           `json:"detail"`
	Fields []api.FieldError `json:"fields"`
	Output []string         `json:"output"`
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestAuthentication(t *testing.T) {
	Convey("Given an API server verifying bearer tokens", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)

		Convey("When listing events anonymously", func() {
			w := do(h, http.MethodGet, "/api/events", "", "")

			Convey("Then the request succeeds", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var events []model.Event
				So(json.Unmarshal(w.Body.Bytes(), &events), ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			})
		})

		Convey("When a token is signed with another secret", func() {
			bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
				Role:             "student",
				RegisteredClaims: jwt.RegisteredClaims{Subject: "3"},
			}).SignedString([]byte("other"))
			So(err, ShouldBeNil)
			w := do(h, http.MethodGet, "/api/events", bad, "")

			Convey("Then it is rejected even on a public route", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeError(w).Code, ShouldEqual, "unauthorized")
			})
		})

		Convey("When a token carries an unknown role", func() {
			w := do(h, http.MethodGet, "/api/events", token(3, model.Role("admin")), "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When an expired token is presented", func() {
			expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, api.Claims{
				Role: "student",
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "3",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				},
			}).SignedString([]byte(testSecret))
			So(err, ShouldBeNil)
			w := do(h, http.MethodGet, "/api/students/similar", expired, "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the header is not a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When an anonymous caller needs a role", func() {
			w := do(h, http.MethodPost, "/api/predict", "", `{}`)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When a student calls an organizer route", func() {
			w := do(h, http.MethodPost, "/api/ml/retrain/predict", token(3, model.RoleStudent), "")

			Convey("Then the role is refused", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decodeError(w).Code, ShouldEqual, "forbidden")
			})
		})

		Convey("When an organizer tries to register", func() {
			w := do(h, http.MethodPost, "/api/events/1/register", token(1, model.RoleOrganizer), "")
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})

	Convey("Given a server without an authenticator", t, func() {
		h := api.NewServer(newMockDeps(), mockStats{}, api.WithLogger(logger.Nop())).Routes(context.Background())

		Convey("Then protected routes reject every request", func() {
			w := do(h, http.MethodGet, "/api/students/similar", token(3, model.RoleStudent), "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then public routes still work", func() {
			w := do(h, http.MethodGet, "/api/events", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestPredictEndpoint(t *testing.T) {
	Convey("Given an organizer calling the predictor", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)
		org := token(1, model.RoleOrganizer)

		Convey("When the request is valid", func() {
			w := do(h, http.MethodPost, "/api/predict", org,
				`{"category":"Technology","department":"Computer","target_year":"3","max_capacity":50,"tags":["ai"]}`)

			Convey("Then the prediction is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var p scoring.Prediction
				So(json.Unmarshal(w.Body.Bytes(), &p), ShouldBeNil)
				So(p.SuccessRate, ShouldEqual, 80)
				So(p.ExpectedAttendees, ShouldEqual, 40)
				So(p.Engagement, ShouldEqual, 85)
				So(p.Sentiment, ShouldEqual, "Positive")
			})
		})

		Convey("When required fields are missing", func() {
			w := do(h, http.MethodPost, "/api/predict", org, `{"category":"Technology","max_capacity":0}`)

			Convey("Then each rejected field is reported", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "bad_request")
				fields := map[string]string{}
				for _, f := range body.Fields {
					fields[f.Field] = f.Tag
				}
				So(fields["department"], ShouldEqual, "required")
				So(fields["target_year"], ShouldEqual, "required")
				So(fields["max_capacity"], ShouldEqual, "gte")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/api/predict", org, `{"category":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When no model has been trained", func() {
			deps.predictErr = fmt.Errorf("%w: no artifact", scoring.ErrModelUnavailable)
			w := do(h, http.MethodPost, "/api/predict", org,
				`{"category":"Technology","department":"Computer","target_year":"3","max_capacity":50}`)

			Convey("Then the service is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decodeError(w).Code, ShouldEqual, "model_unavailable")
			})
		})
	})
}

func TestEventEndpoints(t *testing.T) {
	Convey("Given the event routes", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)
		org := token(1, model.RoleOrganizer)
		student := token(3, model.RoleStudent)

		Convey("When an organizer creates an event", func() {
			w := do(h, http.MethodPost, "/api/events", org, `{
				"title":"AI Night","date":"2025-09-01","time":"18:30","category":"Technology",
				"department":"Computer","target_year":"3","max_capacity":40,"tags":["ai"],
				"schedule":[{"time":"18:30","activity":"Intro"}]
			}`)

			Convey("Then it is created for the caller", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.organizer, ShouldEqual, 1)
				So(deps.created.Schedule, ShouldHaveLength, 1)
				var ev model.Event
				So(json.Unmarshal(w.Body.Bytes(), &ev), ShouldBeNil)
				So(ev.ID, ShouldEqual, 7)
				So(ev.Title, ShouldEqual, "AI Night")
			})
		})

		Convey("When the event date is malformed", func() {
			w := do(h, http.MethodPost, "/api/events", org,
				`{"title":"X","date":"01/09/2025","category":"Tech","department":"CS","target_year":"1","max_capacity":5}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Fields[0].Field, ShouldEqual, "date")
		})

		Convey("When a student registers twice", func() {
			first := do(h, http.MethodPost, "/api/events/4/register", student, "")
			second := do(h, http.MethodPost, "/api/events/4/register", student, "")

			Convey("Then the second call is a no-op", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				var resp types.RegistrationResponse
				So(json.Unmarshal(second.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Registered, ShouldBeTrue)
				So(resp.Created, ShouldBeFalse)
			})

			Convey("And the detail shows the caller as registered", func() {
				w := do(h, http.MethodGet, "/api/events/4", student, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var d types.EventDetail
				So(json.Unmarshal(w.Body.Bytes(), &d), ShouldBeNil)
				So(d.RegisteredUsersCount, ShouldEqual, 1)
				So(d.IsRegistered, ShouldBeTrue)
			})
		})

		Convey("When a student unregisters without a registration", func() {
			w := do(h, http.MethodPost, "/api/events/4/unregister", student, "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Code, ShouldEqual, "not_registered")
		})

		Convey("When the event does not exist", func() {
			deps.detailErr = fmt.Errorf("get event: %w", repository.ErrNotFound)
			w := do(h, http.MethodGet, "/api/events/99", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the id is not a number", func() {
			w := do(h, http.MethodGet, "/api/events/abc", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestFeedbackAndSimilarity(t *testing.T) {
	Convey("Given an authenticated student", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps, api.WithSimilarTopN(5, 10))
		student := token(3, model.RoleStudent)

		Convey("When feedback is submitted", func() {
			w := do(h, http.MethodPost, "/api/events/4/feedback", student, `{"rating":4,"comment":"nice"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then it is listed for the event", func() {
				w := do(h, http.MethodGet, "/api/events/4/feedback", student, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var list []model.Feedback
				So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].UserID, ShouldEqual, 3)
			})
		})

		Convey("When the rating is out of range", func() {
			w := do(h, http.MethodPost, "/api/events/4/feedback", student, `{"rating":6}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w).Fields[0].Tag, ShouldEqual, "lte")
		})

		Convey("When feedback is listed anonymously", func() {
			w := do(h, http.MethodGet, "/api/events/4/feedback", "", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When similar students are requested without top", func() {
			w := do(h, http.MethodGet, "/api/students/similar", student, "")

			Convey("Then the default top and the caller are used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
				So(deps.lastTop, ShouldEqual, 5)
				So(deps.lastUser, ShouldEqual, 3)
			})
		})

		Convey("When top is out of range", func() {
			for _, top := range []string{"0", "11", "x"} {
				w := do(h, http.MethodGet, "/api/students/similar?top="+top, student, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When peers are found", func() {
			deps.peers = []similarity.Peer{{UserID: 4, Name: "Ana", Similarity: 97, Interests: []string{"ai"}}}
			w := do(h, http.MethodGet, "/api/students/similar?top=2", student, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var peers []similarity.Peer
			So(json.Unmarshal(w.Body.Bytes(), &peers), ShouldBeNil)
			So(peers, ShouldHaveLength, 1)
			So(peers[0].Similarity, ShouldEqual, 97)
			So(deps.lastTop, ShouldEqual, 2)
		})

		Convey("When the clustering model is missing", func() {
			deps.peersErr = similarity.ErrModelUnavailable
			w := do(h, http.MethodGet, "/api/students/similar", student, "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestJobEndpoints(t *testing.T) {
	Convey("Given an organizer triggering jobs", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)
		org := token(1, model.RoleOrganizer)
		started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		Convey("When the job succeeds", func() {
			deps.jobResult = model.JobResult{
				JobID:    "job-1",
				Output:   []string{"train-clusters: selected kmeans on 6 students"},
				Started:  started,
				Finished: started.Add(1500 * time.Millisecond),
			}
			w := do(h, http.MethodPost, "/api/ml/retrain/clustering", org, "")

			Convey("Then the output is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp types.JobResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Kind, ShouldEqual, string(model.JobRetrainClusters))
				So(resp.DurationMs, ShouldEqual, 1500)
				So(resp.Output, ShouldHaveLength, 1)
			})
		})

		Convey("When the job fails", func() {
			deps.jobResult = model.JobResult{
				Output: []string{"clean-events: failed: dataset: no rows"},
				Err:    errors.New("clean-events: dataset: no rows"),
			}
			w := do(h, http.MethodPost, "/api/ml/retrain/predict", org, "")

			Convey("Then the failure carries the job output", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "job_failed")
				So(body.Output, ShouldResemble, []string{"clean-events: failed: dataset: no rows"})
			})
		})

		Convey("When the same job is already running", func() {
			deps.jobErr = fmt.Errorf("%w: %s", jobs.ErrJobInFlight, model.JobExportFeatures)
			w := do(h, http.MethodPost, "/api/ml/export/student-features", org, "")
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the queue is full", func() {
			deps.jobErr = jobs.ErrBackpressure
			w := do(h, http.MethodPost, "/api/ml/export/student-features", org, "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w).Code, ShouldEqual, "backpressure")
		})

		Convey("When the service stops before the job runs", func() {
			deps.jobErr = fmt.Errorf("service not started: %w", worker.ErrStopped)
			w := do(h, http.MethodPost, "/api/ml/export/student-features", org, "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decodeError(w).Code, ShouldEqual, "shutting_down")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the operational routes", t, func() {
		h := newTestServer(newMockDeps())

		Convey("Then /stats reports the provider's numbers", func() {
			w := do(h, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then /healthz exposes metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then rejected requests are counted under their route pattern", func() {
			So(do(h, http.MethodGet, "/api/students/similar", "", "").Code, ShouldEqual, http.StatusUnauthorized)
			w := do(h, http.MethodGet, "/healthz", "", "")
			So(w.Body.String(), ShouldContainSubstring, `endpoint="/api/students/similar",method="GET",status_code="401"`)
		})

		Convey("Then unknown routes get a JSON 404", func() {
			w := do(h, http.MethodGet, "/nope", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w).Code, ShouldEqual, "not_found")
		})

		Convey("Then a wrong method gets a JSON 405", func() {
			w := do(h, http.MethodDelete, "/api/events", "", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given a server limited to two requests a minute", t, func() {
		h := newTestServer(newMockDeps(), api.WithRateLimit(2))

		Convey("Then the third request from one address is refused", func() {
			So(do(h, http.MethodGet, "/api/events", "", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api/events", "", "").Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodGet, "/api/events", "", "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w).Code, ShouldEqual, "rate_limited")
		})
	})

	Convey("Given a server allowing one browser origin", t, func() {
		h := newTestServer(newMockDeps(), api.WithCORSOrigins("http://localhost:3000"))

		Convey("Then preflight requests from it are answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:3000")
		})
	})
}
