package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/http/api"
	"github.com/okian/rollcall/internal/adapters/http/client"
	"github.com/okian/rollcall/internal/adapters/repository"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/lock"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/store"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	ann = model.Student{ID: "s1", Name: "Ann", RollNumber: 1}
	bo  = model.Student{ID: "s2", Name: "Bo", RollNumber: 2}
	now = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
)

func newTestMux(t *testing.T, opts ...api.Option) (*http.ServeMux, *service.Service) {
	t.Helper()
	mem := repository.NewMemoryStore(context.Background(), repository.WithStudents(ann, bo))
	t.Cleanup(func() { _ = mem.Close() })

	svc := service.New(
		service.WithStore(mem),
		service.WithLockPolicy(lock.New(lock.WithLocation(time.UTC))),
		service.WithClock(func() time.Time { return now }),
	)
	mux := http.NewServeMux()
	api.NewServer(svc, svc, opts...).Register(context.Background(), mux)
	return mux, svc
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionBody struct {
	ID             string        `json:"id"`
	Date           string        `json:"date"`
	Entries        []model.Entry `json:"entries"`
	ExistsOnServer bool          `json:"existsOnServer"`
	Locked         bool          `json:"locked"`
	Complete       bool          `json:"complete"`
	Stats          model.Stats   `json:"stats"`
}

func TestServer_Ops(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newTestMux(t)

		Convey("Then health returns JSON ok", func() {
			w := do(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then stats are served", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "activeSessions")
		})

		Convey("Then metrics are exposed", func() {
			_ = do(mux, "GET", "/healthz", "")
			w := do(mux, "GET", "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "rollcall_attendance_http_requests_total")
		})
	})
}

func TestServer_StoreEndpoints(t *testing.T) {
	Convey("Given the store endpoints", t, func() {
		mux, _ := newTestMux(t)

		Convey("When listing students", func() {
			w := do(mux, "GET", "/students", "")
			var got []model.Student
			So(decodeBody(w, &got), ShouldBeNil)

			Convey("Then they come in roll order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got, ShouldResemble, []model.Student{ann, bo})
			})
		})

		Convey("When adding students", func() {
			ok := do(mux, "POST", "/students", `{"name":"Cy Dee","rollNumber":3}`)
			badName := do(mux, "POST", "/students", `{"name":"C3","rollNumber":3}`)
			noRoll := do(mux, "POST", "/students", `{"name":"Cy"}`)
			unknown := do(mux, "POST", "/students", `{"name":"Cy","rollNumber":3,"age":9}`)

			Convey("Then valid ones are created and invalid ones rejected", func() {
				So(ok.Code, ShouldEqual, http.StatusCreated)
				var st model.Student
				So(decodeBody(ok, &st), ShouldBeNil)
				So(st.ID, ShouldNotBeEmpty)
				So(st.Name, ShouldEqual, "Cy Dee")

				So(badName.Code, ShouldEqual, http.StatusBadRequest)
				So(noRoll.Code, ShouldEqual, http.StatusBadRequest)
				So(noRoll.Body.String(), ShouldContainSubstring, "rollNumber")
				So(unknown.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When updating and deleting students", func() {
			upd := do(mux, "PUT", "/students/s2", `{"name":"Bob","rollNumber":2}`)
			missing := do(mux, "PUT", "/students/zz", `{"name":"Zed","rollNumber":9}`)
			del := do(mux, "DELETE", "/students/s1", "")
			delMissing := do(mux, "DELETE", "/students/s1", "")

			Convey("Then status codes follow the store", func() {
				So(upd.Code, ShouldEqual, http.StatusOK)
				So(missing.Code, ShouldEqual, http.StatusNotFound)
				So(del.Code, ShouldEqual, http.StatusNoContent)
				So(delMissing.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When creating a record set twice", func() {
			body := `{"date":"2024-05-03","records":[{"studentId":"s1","status":"present"},{"studentId":"s2","date":"2024-05-03","status":"absent"}]}`
			first := do(mux, "POST", "/attendance/mark", body)
			second := do(mux, "POST", "/attendance/mark", body)

			Convey("Then the second conflicts", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusConflict)
				var e errorBody
				So(decodeBody(second, &e), ShouldBeNil)
				So(e.Code, ShouldEqual, "already_exists")
			})

			Convey("Then reads return the set", func() {
				w := do(mux, "GET", "/attendance/daily?date=2024-05-03", "")
				var got []model.Record
				So(decodeBody(w, &got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)

				w = do(mux, "GET", "/attendance/monthly?month=5&year=2024", "")
				So(decodeBody(w, &got), ShouldBeNil)
				So(len(got), ShouldEqual, 2)
			})
		})

		Convey("When editing a date with no records", func() {
			w := do(mux, "PUT", "/attendance/edit", `{"date":"2024-05-04","records":[{"studentId":"s1","status":"present"}]}`)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a record set is malformed", func() {
			unmarked := do(mux, "POST", "/attendance/mark", `{"date":"2024-05-03","records":[{"studentId":"s1","status":"unmarked"}]}`)
			wrongDate := do(mux, "POST", "/attendance/mark", `{"date":"2024-05-03","records":[{"studentId":"s1","date":"2024-05-04","status":"present"}]}`)
			dup := do(mux, "POST", "/attendance/mark", `{"date":"2024-05-03","records":[{"studentId":"s1","status":"present"},{"studentId":"s1","status":"absent"}]}`)
			badQuery := do(mux, "GET", "/attendance/monthly?month=13&year=2024", "")
			noDate := do(mux, "GET", "/attendance/daily", "")

			Convey("Then each is a bad request", func() {
				So(unmarked.Code, ShouldEqual, http.StatusBadRequest)
				So(wrongDate.Code, ShouldEqual, http.StatusBadRequest)
				So(dup.Code, ShouldEqual, http.StatusBadRequest)
				So(badQuery.Code, ShouldEqual, http.StatusBadRequest)
				So(noDate.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})

	Convey("Given the store API disabled", t, func() {
		mux, _ := newTestMux(t, api.WithStoreAPI(false))

		Convey("Then store routes are absent but sessions remain", func() {
			So(do(mux, "GET", "/students", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, "POST", "/sessions", `{"date":"2024-05-06"}`).Code, ShouldEqual, http.StatusCreated)
		})
	})
}

func TestServer_SessionWorkflow(t *testing.T) {
	Convey("Given a session opened for today", t, func() {
		mux, _ := newTestMux(t)
		w := do(mux, "POST", "/sessions", `{"date":"2024-05-06"}`)
		So(w.Code, ShouldEqual, http.StatusCreated)
		var sess sessionBody
		So(decodeBody(w, &sess), ShouldBeNil)
		base := "/sessions/" + sess.ID

		Convey("Then it is unmarked, unlocked and new", func() {
			So(sess.Date, ShouldEqual, "2024-05-06")
			So(sess.ExistsOnServer, ShouldBeFalse)
			So(sess.Locked, ShouldBeFalse)
			So(sess.Complete, ShouldBeFalse)
			So(len(sess.Entries), ShouldEqual, 2)
			So(sess.Entries[0].Status, ShouldEqual, model.StatusUnmarked)
		})

		Convey("When submitting before marking", func() {
			w := do(mux, "POST", base+"/submit", "")

			Convey("Then it is unprocessable", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				var e errorBody
				So(decodeBody(w, &e), ShouldBeNil)
				So(e.Code, ShouldEqual, "incomplete")
			})
		})

		Convey("When every student is marked and submitted twice", func() {
			So(do(mux, "PUT", base+"/marks/s1", `{"status":"present"}`).Code, ShouldEqual, http.StatusOK)
			mw := do(mux, "PUT", base+"/marks/s2", `{"status":"Present"}`)
			var mark struct {
				Applied bool        `json:"applied"`
				Session sessionBody `json:"session"`
			}
			So(decodeBody(mw, &mark), ShouldBeNil)
			So(mark.Applied, ShouldBeTrue)
			So(mark.Session.Complete, ShouldBeTrue)

			first := do(mux, "POST", base+"/submit", "")
			So(do(mux, "PUT", base+"/marks/s2", `{"status":"absent"}`).Code, ShouldEqual, http.StatusOK)
			second := do(mux, "POST", base+"/submit", "")

			Convey("Then the first creates and the second updates", func() {
				var r1, r2 struct {
					Mode    string         `json:"mode"`
					Records []model.Record `json:"records"`
				}
				So(first.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(first, &r1), ShouldBeNil)
				So(r1.Mode, ShouldEqual, "created")
				So(second.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(second, &r2), ShouldBeNil)
				So(r2.Mode, ShouldEqual, "updated")
				So(r2.Records[1].Status, ShouldEqual, model.StatusAbsent)
			})

			Convey("Then reports reflect the stored records", func() {
				w := do(mux, "GET", "/reports/daily?date=2024-05-06", "")
				var daily struct {
					Entries    []model.Entry `json:"entries"`
					Stats      model.Stats   `json:"stats"`
					Unrecorded int           `json:"unrecorded"`
				}
				So(decodeBody(w, &daily), ShouldBeNil)
				So(daily.Stats, ShouldResemble, model.Stats{Present: 1, Absent: 1, Total: 2})

				w = do(mux, "GET", "/reports/monthly?month=5&year=2024", "")
				var rows []model.MonthlyAggregate
				So(decodeBody(w, &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 2)
				So(rows[0].Percentage, ShouldEqual, 100)
				So(rows[1].Percentage, ShouldEqual, 0)

				w = do(mux, "GET", "/reports/monthly.xlsx?month=5&year=2024", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "attendance-2024-05.xlsx")
				So(w.Body.Len(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When marking with an unknown status", func() {
			w := do(mux, "PUT", base+"/marks/s1", `{"status":"late"}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When marking an unknown student", func() {
			w := do(mux, "PUT", base+"/marks/ghost", `{"status":"present"}`)

			Convey("Then it is ignored, not failed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"applied":false`)
			})
		})

		Convey("When changing the date", func() {
			w := do(mux, "PUT", base+"/date", `{"date":"2024-05-07"}`)
			var moved sessionBody
			So(decodeBody(w, &moved), ShouldBeNil)

			Convey("Then the session follows", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(moved.Date, ShouldEqual, "2024-05-07")
			})
		})

		Convey("When closing it", func() {
			So(do(mux, "DELETE", base, "").Code, ShouldEqual, http.StatusNoContent)

			Convey("Then it is gone", func() {
				So(do(mux, "GET", base, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a stored date whose edit window closed", t, func() {
		mux, _ := newTestMux(t)
		So(do(mux, "POST", "/attendance/mark",
			`{"date":"2024-05-05","records":[{"studentId":"s1","status":"present"},{"studentId":"s2","status":"present"}]}`).Code,
			ShouldEqual, http.StatusCreated)

		w := do(mux, "POST", "/sessions", `{"date":"2024-05-05"}`)
		var sess sessionBody
		So(decodeBody(w, &sess), ShouldBeNil)

		Convey("Then marks are ignored and submit is locked", func() {
			So(sess.Locked, ShouldBeTrue)
			So(sess.ExistsOnServer, ShouldBeTrue)
			mark := do(mux, "PUT", "/sessions/"+sess.ID+"/marks/s1", `{"status":"absent"}`)
			So(mark.Body.String(), ShouldContainSubstring, `"applied":false`)

			sub := do(mux, "POST", "/sessions/"+sess.ID+"/submit", "")
			So(sub.Code, ShouldEqual, http.StatusLocked)
		})
	})

	Convey("Given bad session requests", t, func() {
		mux, _ := newTestMux(t)

		Convey("Then they map to 400 and 404", func() {
			So(do(mux, "POST", "/sessions", `{"date":"06/05/2024"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "POST", "/sessions", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/sessions/nope", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, "POST", "/sessions/nope/submit", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Unavailable(t *testing.T) {
	Convey("Given a service with no store", t, func() {
		svc := service.New()
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)

		Convey("Then store-backed calls answer 503", func() {
			w := do(mux, "POST", "/sessions", `{"date":"2024-05-06"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(do(mux, "GET", "/reports/monthly?month=5&year=2024", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then roster writes are refused", func() {
			w := do(mux, "POST", "/students", `{"name":"Cy","rollNumber":3}`)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_RemoteClientContract(t *testing.T) {
	Convey("Given the remote store client pointed at the API", t, func() {
		mux, _ := newTestMux(t)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, err := client.New(srv.URL)
		So(err, ShouldBeNil)
		ctx := context.Background()
		d := model.NewDate(2024, 5, 2)
		recs := []model.Record{
			{StudentID: "s1", Date: d, Status: model.StatusPresent},
			{StudentID: "s2", Date: d, Status: model.StatusAbsent},
		}

		Convey("Then the create/update contract holds end to end", func() {
			So(errors.Is(c.Update(ctx, d, recs), store.ErrNotFound), ShouldBeTrue)
			So(c.Create(ctx, d, recs), ShouldBeNil)
			So(errors.Is(c.Create(ctx, d, recs), store.ErrAlreadyExists), ShouldBeTrue)

			recs[1].Status = model.StatusPresent
			So(c.Update(ctx, d, recs), ShouldBeNil)
			got, err := c.RecordsByDate(ctx, d)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, recs)

			month, err := c.RecordsByMonth(ctx, model.PeriodOf(d))
			So(err, ShouldBeNil)
			So(len(month), ShouldEqual, 2)
		})

		Convey("Then the roster round trips", func() {
			st, err := c.AddStudent(ctx, "Cy", 3)
			So(err, ShouldBeNil)
			roster, err := c.Roster(ctx)
			So(err, ShouldBeNil)
			So(roster[2], ShouldResemble, st)
			So(c.DeleteStudent(ctx, st.ID), ShouldBeNil)
			So(errors.Is(c.DeleteStudent(ctx, st.ID), store.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given kind errors", t, func() {
		cause := errors.New("boom")

		Convey("Then both kind and cause unwrap", func() {
			err := api.WrapKind("op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: bad request: boom")
			So(api.NewKind("op", api.ErrBadRequest).Error(), ShouldEqual, "op: bad request")
			So(api.Wrap("op", cause).Error(), ShouldEqual, "op: boom")
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}
