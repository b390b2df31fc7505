package scheduler

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/models"
)

var now = time.Date(2026, 10, 14, 8, 0, 0, 0, time.Local)

func at(day, h, m int) time.Time {
	return time.Date(2026, 10, day, h, m, 0, 0, time.Local)
}

func newTest(h Hooks) *Scheduler {
	n := 0
	return New(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		WithHooks(h),
	)
}

func TestSave_CreateAndReplace(t *testing.T) {
	var saved []bool
	s := newTest(Hooks{OnSave: func(_ models.Appointment, created bool) { saved = append(saved, created) }})

	a, created := s.Save(models.Appointment{Title: "Checkup", Start: at(14, 9, 0), End: at(14, 10, 0)})
	if !created || a.ID != "id-1" || a.Color != models.DefaultColor {
		t.Fatalf("created = %v %+v", created, a)
	}
	snapshot := s.Appointments()

	a.Title = "Annual checkup"
	if _, created := s.Save(a); created {
		t.Error("replace reported as create")
	}
	if got, _ := s.Find("id-1"); got.Title != "Annual checkup" {
		t.Errorf("title = %q", got.Title)
	}
	if snapshot[0].Title != "Checkup" {
		t.Error("earlier snapshot changed")
	}
	if len(saved) != 2 || !saved[0] || saved[1] {
		t.Errorf("hooks = %v", saved)
	}
}

func TestSave_KeepsOrderAndClosesModal(t *testing.T) {
	s := newTest(Hooks{})
	s.Load([]models.Appointment{{ID: "x"}, {ID: "y"}, {ID: "z"}})
	s.Open("y")
	s.Save(models.Appointment{ID: "y", Title: "changed"})
	got := s.Appointments()
	if got[1].ID != "y" || got[1].Title != "changed" || len(got) != 3 {
		t.Errorf("collection = %+v", got)
	}
	if st := s.State(); st.IsModalOpen || st.SelectedID != "" {
		t.Errorf("modal state = %+v", st)
	}
}

func TestDelete(t *testing.T) {
	var deleted []string
	s := newTest(Hooks{OnDelete: func(id string) { deleted = append(deleted, id) }})
	s.Load([]models.Appointment{{ID: "x"}, {ID: "y"}})
	if !s.Delete("x") {
		t.Fatal("delete x")
	}
	if s.Delete("x") {
		t.Error("second delete should report false")
	}
	if len(s.Appointments()) != 1 || len(deleted) != 1 {
		t.Errorf("apps = %d hooks = %v", len(s.Appointments()), deleted)
	}
}

func TestMove(t *testing.T) {
	var prev models.Appointment
	s := newTest(Hooks{OnMove: func(a models.Appointment, _, _ time.Time) { prev = a }})
	s.Load([]models.Appointment{{ID: "x", Start: at(14, 9, 0), End: at(14, 10, 0)}})
	got, err := s.Move("x", at(15, 11, 0), at(15, 12, 0))
	if err != nil || !got.Start.Equal(at(15, 11, 0)) {
		t.Fatalf("move = %+v %v", got, err)
	}
	if !prev.Start.Equal(at(14, 9, 0)) {
		t.Errorf("hook got %v, want original", prev.Start)
	}
	if _, err := s.Move("nope", now, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestNavigationAndVisible(t *testing.T) {
	s := newTest(Hooks{})
	s.Load([]models.Appointment{
		{ID: "mon", Start: at(12, 0, 0), End: at(12, 1, 0)},
		{ID: "wed", Start: at(14, 9, 0), End: at(14, 10, 0)},
		{ID: "next", Start: at(21, 9, 0), End: at(21, 10, 0)},
	})
	if v := s.Visible(); len(v) != 1 || v[0].ID != "wed" {
		t.Errorf("daily visible = %+v", v)
	}
	s.SetView(models.ViewWeekly)
	if v := s.Visible(); len(v) != 2 {
		t.Errorf("weekly visible = %d", len(v))
	}
	if got := s.Label(); got != "12 out - 18/out/2026" {
		t.Errorf("label = %q", got)
	}
	s.Next()
	if v := s.Visible(); len(v) != 1 || v[0].ID != "next" {
		t.Errorf("next week visible = %+v", v)
	}
	s.SetView(models.ViewMonthly)
	s.Previous()
	if d := s.State().CurrentDate; !d.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)) {
		t.Errorf("previous month = %v", d)
	}
	s.Today()
	if d := s.State().CurrentDate; !d.Equal(now) {
		t.Errorf("today = %v", d)
	}
}

func TestOpenAndDraft(t *testing.T) {
	var clicked string
	s := newTest(Hooks{OnClick: func(a models.Appointment) { clicked = a.ID }})
	s.Load([]models.Appointment{{ID: "x"}})
	if _, ok := s.Open("x"); !ok || clicked != "x" {
		t.Fatalf("open x, clicked = %q", clicked)
	}
	if st := s.State(); !st.IsModalOpen || st.SelectedID != "x" {
		t.Errorf("state = %+v", st)
	}
	if _, ok := s.Open("missing"); ok {
		t.Error("missing should not open")
	}

	d := s.OpenDraft(models.Appointment{})
	if !d.Start.Equal(at(14, 9, 0)) || !d.End.Equal(at(14, 10, 0)) || d.Color != models.DefaultColor {
		t.Errorf("draft = %+v", d)
	}
	st := s.State()
	if st.Draft == nil || st.SelectedID != "" {
		t.Fatalf("state = %+v", st)
	}
	st.Draft.Title = "mutated"
	if s.State().Draft.Title == "mutated" {
		t.Error("State leaked draft pointer")
	}
	s.Close()
	if s.State().IsModalOpen {
		t.Error("modal still open")
	}
}

func TestDrop(t *testing.T) {
	s := newTest(Hooks{})
	s.Load([]models.Appointment{{ID: "x", Start: at(14, 14, 0), End: at(14, 14, 30)}})

	got, err := s.Drop(models.ViewDaily, now, "x", "16:30")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Start.Equal(at(14, 16, 30)) || !got.End.Equal(at(14, 17, 0)) {
		t.Errorf("moved to %v - %v", got.Start, got.End)
	}

	if _, err := s.Drop(models.ViewDaily, now, "x", "bad"); !errors.Is(err, drag.ErrMalformedTarget) {
		t.Errorf("err = %v", err)
	}
	if a, _ := s.Find("x"); !a.Start.Equal(at(14, 16, 30)) {
		t.Error("malformed drop changed the appointment")
	}
	if _, err := s.Drop(models.ViewDaily, now, "gone", "9:0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestControllerCommit(t *testing.T) {
	s := newTest(Hooks{})
	s.Load([]models.Appointment{{ID: "x", Start: at(13, 9, 0), End: at(13, 9, 45)}})
	s.SetView(models.ViewWeekly)

	c := s.Controller()
	c.Press("x", drag.Pointer, drag.Point{}, now)
	c.Move(drag.Point{X: 100, Y: 40}, now)
	res := c.Release("4-11-0", now)
	got, ok := s.Commit(res)
	if !ok {
		t.Fatalf("result = %+v", res)
	}
	if !got.Start.Equal(at(16, 11, 0)) || got.End.Sub(got.Start) != 45*time.Minute {
		t.Errorf("moved to %v - %v", got.Start, got.End)
	}

	if _, ok := s.Commit(drag.Result{Outcome: drag.OutcomeCancel, ID: "x"}); ok {
		t.Error("cancel should not commit")
	}
}

func TestSetCalendar(t *testing.T) {
	s := newTest(Hooks{})
	s.SetView(models.ViewWeekly)
	s.SetCalendar(time.Sunday, nil)
	if s.WeekStart() != time.Sunday || s.Locale() == nil {
		t.Fatal("calendar not applied")
	}
	if w := s.Window(); !w.Start.Equal(at(11, 0, 0)) {
		t.Errorf("window start = %v", w.Start)
	}
}

func TestCreate_ExplicitIDTaken(t *testing.T) {
	var created []string
	s := newTest(Hooks{OnSave: func(a models.Appointment, c bool) {
		if c {
			created = append(created, a.ID)
		}
	}})

	a, err := s.Create(models.Appointment{Title: "New"})
	if err != nil || a.ID != "id-1" {
		t.Fatalf("create = %+v, %v", a, err)
	}
	if _, err := s.Create(models.Appointment{ID: "x", Title: "Explicit"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(models.Appointment{ID: "x", Title: "Again"}); !errors.Is(err, ErrExists) {
		t.Errorf("err = %v", err)
	}
	if got, _ := s.Find("x"); got.Title != "Explicit" {
		t.Errorf("title = %q", got.Title)
	}
	if len(created) != 2 {
		t.Errorf("created hooks = %v", created)
	}
}

func TestReplace_CheckAndMissing(t *testing.T) {
	saves := 0
	s := newTest(Hooks{OnSave: func(models.Appointment, bool) { saves++ }})
	s.Load([]models.Appointment{{ID: "x", Title: "v1"}})

	stale := errors.New("stale")
	check := func(cur models.Appointment) error {
		if cur.Title != "v1" {
			return stale
		}
		return nil
	}
	if _, err := s.Replace(models.Appointment{ID: "x", Title: "v2"}, check); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Replace(models.Appointment{ID: "x", Title: "v3"}, check); !errors.Is(err, stale) {
		t.Errorf("second replace err = %v", err)
	}
	if got, _ := s.Find("x"); got.Title != "v2" {
		t.Errorf("title = %q", got.Title)
	}

	s.Delete("x")
	if _, err := s.Replace(models.Appointment{ID: "x", Title: "back"}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if len(s.Appointments()) != 0 {
		t.Error("deleted appointment came back")
	}
	if saves != 1 {
		t.Errorf("save hooks = %d", saves)
	}
}

func TestHooksFollowCommitOrder(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		var (
			mu   sync.Mutex
			last string
		)
		s := newTest(Hooks{OnSave: func(a models.Appointment, _ bool) {
			runtime.Gosched()
			mu.Lock()
			last = a.Title
			mu.Unlock()
		}})
		s.Load([]models.Appointment{{ID: "x", Title: "start"}})

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				s.Save(models.Appointment{ID: "x", Title: fmt.Sprintf("writer-%d", w)})
			}(w)
		}
		wg.Wait()

		got, _ := s.Find("x")
		if got.Title != last {
			t.Fatalf("iteration %d: collection has %q, last hook saw %q", iter, got.Title, last)
		}
	}
}

func TestCommit_UsesCurrentDuration(t *testing.T) {
	var moved []time.Time
	s := newTest(Hooks{OnMove: func(_ models.Appointment, start, end time.Time) { moved = append(moved, start, end) }})
	s.Load([]models.Appointment{{ID: "x", Start: at(14, 9, 0), End: at(14, 9, 30)}})

	c := s.Controller()
	c.Press("x", drag.Pointer, drag.Point{}, now)
	c.Move(drag.Point{Y: 40}, now)
	res := c.Release("11:00", now)

	// resized after release, before commit
	s.Move("x", at(14, 9, 0), at(14, 10, 30))
	got, ok := s.Commit(res)
	if !ok {
		t.Fatalf("result = %+v", res)
	}
	if !got.Start.Equal(at(14, 11, 0)) || !got.End.Equal(at(14, 12, 30)) {
		t.Errorf("moved to %v - %v", got.Start, got.End)
	}
	if len(moved) != 4 || !moved[3].Equal(got.End) {
		t.Errorf("hooks = %v", moved)
	}
}

func TestController_UsesConfiguredThresholds(t *testing.T) {
	th := drag.DefaultThresholds()
	th.Mouse.Delay = 500 * time.Millisecond
	s := New(WithClock(func() time.Time { return now }), WithThresholds(th))
	s.Load([]models.Appointment{{ID: "x", Start: at(14, 9, 0), End: at(14, 10, 0)}})

	c := s.Controller()
	c.Press("x", drag.Mouse, drag.Point{}, now)
	if st := c.Tick(now.Add(200 * time.Millisecond)); st != drag.Pending {
		t.Errorf("state at 200ms = %v", st)
	}
	if st := c.Tick(now.Add(500 * time.Millisecond)); st != drag.Dragging {
		t.Errorf("state at 500ms = %v", st)
	}

	th.Mouse.Delay = 50 * time.Millisecond
	s.SetThresholds(th)
	c = s.Controller()
	c.Press("x", drag.Mouse, drag.Point{}, now)
	if st := c.Tick(now.Add(60 * time.Millisecond)); st != drag.Dragging {
		t.Errorf("state after SetThresholds = %v", st)
	}
}
