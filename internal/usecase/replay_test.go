package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"relay-pipeline/internal/domain"
)

type recordingDriver struct {
	calls []string
	// failOn fails the first call whose description starts with it.
	failOn string
	failed bool
}

func (d *recordingDriver) do(call string) error {
	d.calls = append(d.calls, call)
	if d.failOn != "" && !d.failed && strings.HasPrefix(call, d.failOn) {
		d.failed = true
		return errors.New("element not found")
	}
	return nil
}

func (d *recordingDriver) Navigate(_ context.Context, url string) error {
	return d.do("navigate " + url)
}

func (d *recordingDriver) Fill(_ context.Context, selector, value string) error {
	return d.do(fmt.Sprintf("fill %s=%s", selector, value))
}

func (d *recordingDriver) Select(_ context.Context, selector, value string) error {
	return d.do(fmt.Sprintf("select %s=%s", selector, value))
}

func (d *recordingDriver) SetValue(_ context.Context, selector, value string) error {
	return d.do(fmt.Sprintf("set %s=%s", selector, value))
}

func (d *recordingDriver) Check(_ context.Context, label string) error {
	return d.do("check " + label)
}

func (d *recordingDriver) Click(_ context.Context, label string) error {
	return d.do("click " + label)
}

func (d *recordingDriver) WaitForText(_ context.Context, text string) error {
	return d.do("wait " + text)
}

func (d *recordingDriver) Reload(_ context.Context) error {
	return d.do("reload")
}

type sliceRows struct {
	rows []domain.FormRow
	pos  int
	err  error
}

func (s *sliceRows) Next() (domain.FormRow, error) {
	if s.err != nil && s.pos == len(s.rows) {
		return domain.FormRow{}, s.err
	}
	if s.pos >= len(s.rows) {
		return domain.FormRow{}, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceRows) Cursor() int { return s.pos }

func TestNewReplayService(t *testing.T) {
	_, err := NewReplayService(nil, "")
	require.Error(t, err)

	svc, err := NewReplayService(&recordingDriver{}, "  ")
	require.NoError(t, err)
	require.Equal(t, DefaultFormURL, svc.formURL)
}

func TestReplay_SubmitsEachRow(t *testing.T) {
	d := &recordingDriver{}
	svc, err := NewReplayService(d, "https://form.test/")
	require.NoError(t, err)

	rows := &sliceRows{rows: []domain.FormRow{
		{Name: "Ana", Bring: "Tortilla", ParticipateInHackathon: true, ArrivalTime: "19:00", Comments: "hola"},
		{Name: "Luis", Bring: "Bebidas", ArrivalTime: "20:30"},
	}}
	out, err := svc.Replay(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, ReplayOutput{Submitted: 2, Cursor: 2}, out)

	require.Equal(t, []string{
		"navigate https://form.test/",
		"fill #name=Ana",
		"select #bring_something=Tortilla",
		"check ¿Participas en el hackathon?",
		"set #arrival_time=19:00",
		"fill #comments=hola",
		"check ¿Eres un bot?",
		"click Registrarse",
		"wait ¡Gracias por registrarte! Juan te espera con los brazos abiertos.",
		"reload",
		"fill #name=Luis",
		"select #bring_something=Bebidas",
		"set #arrival_time=20:30",
		"fill #comments=",
		"check ¿Eres un bot?",
		"click Registrarse",
		"wait ¡Gracias por registrarte! Juan te espera con los brazos abiertos.",
		"reload",
	}, d.calls)
}

func TestReplay_ArrivalTimeAssignedNotTyped(t *testing.T) {
	d := &recordingDriver{failOn: "set #arrival_time"}
	svc, err := NewReplayService(d, "")
	require.NoError(t, err)

	_, err = svc.Replay(context.Background(), &sliceRows{rows: []domain.FormRow{{Name: "Ana", ArrivalTime: "19:30"}}})
	require.Equal(t, ErrorBrowser, CodeOf(err))
	require.Contains(t, d.calls, "set #arrival_time=19:30")
	for _, c := range d.calls {
		require.NotContains(t, c, "fill #arrival_time")
	}
}

func TestReplay_ResumesFromSkippedSource(t *testing.T) {
	src, err := NewRowSource(io.NopCloser(strings.NewReader(
		"name,bring,participate in hackathon,arrival time,comments\nA,x,No,1,\nB,x,No,2,\nC,x,No,3,\n")))
	require.NoError(t, err)
	require.NoError(t, src.Skip(2))

	d := &recordingDriver{}
	svc, err := NewReplayService(d, "")
	require.NoError(t, err)

	out, err := svc.Replay(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, ReplayOutput{Submitted: 1, Cursor: 3}, out)
	require.Contains(t, d.calls, "fill #name=C")
	require.NotContains(t, d.calls, "fill #name=A")
	require.NotContains(t, d.calls, "fill #name=B")
}

func TestReplay_StopsAtFailedRow(t *testing.T) {
	d := &recordingDriver{failOn: "fill #name=B"}
	svc, err := NewReplayService(d, "")
	require.NoError(t, err)

	rows := &sliceRows{rows: []domain.FormRow{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	out, err := svc.Replay(context.Background(), rows)

	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, ErrorBrowser, ue.Code)
	require.Equal(t, "submit_error", ue.Reason)
	require.Equal(t, ReplayOutput{Submitted: 1, Cursor: 1}, out)
	require.NotContains(t, d.calls, "fill #name=C")
}

func TestReplay_NavigateFailure(t *testing.T) {
	d := &recordingDriver{failOn: "navigate"}
	svc, err := NewReplayService(d, "")
	require.NoError(t, err)

	out, err := svc.Replay(context.Background(), &sliceRows{rows: []domain.FormRow{{Name: "A"}}})
	require.Equal(t, ErrorBrowser, CodeOf(err))
	require.Equal(t, ReplayOutput{}, out)
	require.Len(t, d.calls, 1)
}

func TestReplay_ReloadFailureAdvancesCursor(t *testing.T) {
	d := &recordingDriver{failOn: "reload"}
	svc, err := NewReplayService(d, "")
	require.NoError(t, err)

	out, err := svc.Replay(context.Background(), &sliceRows{rows: []domain.FormRow{{Name: "A"}, {Name: "B"}}})
	var ue *Error
	require.ErrorAs(t, err, &ue)
	require.Equal(t, "reload_error", ue.Reason)
	require.Equal(t, ReplayOutput{Submitted: 1, Cursor: 1}, out)
}

func TestReplay_RowReadFailure(t *testing.T) {
	svc, err := NewReplayService(&recordingDriver{}, "")
	require.NoError(t, err)

	out, err := svc.Replay(context.Background(), &sliceRows{rows: []domain.FormRow{{Name: "A"}}, err: errors.New("bad quote")})
	require.Equal(t, ErrorSource, CodeOf(err))
	require.Equal(t, ReplayOutput{Submitted: 1, Cursor: 1}, out)
}
