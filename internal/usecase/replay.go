package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"relay-pipeline/internal/domain"
)

const (
	DefaultFormURL = "https://la-fiestica-form.vercel.app/"

	selectorName     = "#name"
	selectorBring    = "#bring_something"
	selectorArrival  = "#arrival_time"
	selectorComments = "#comments"

	labelHackathon = "¿Participas en el hackathon?"
	labelBot       = "¿Eres un bot?"
	labelSubmit    = "Registrarse"

	confirmationText = "¡Gracias por registrarte! Juan te espera con los brazos abiertos."
)

// FormDriver is the browser surface the replay needs. Selectors are CSS;
// labels are the visible accessible names of checkboxes and buttons.
type FormDriver interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Select(ctx context.Context, selector, value string) error
	// SetValue assigns an input's value directly, for fields such as time
	// inputs that do not take typed text.
	SetValue(ctx context.Context, selector, value string) error
	Check(ctx context.Context, label string) error
	Click(ctx context.Context, label string) error
	WaitForText(ctx context.Context, text string) error
	Reload(ctx context.Context) error
}

// RowIterator yields rows until io.EOF.
type RowIterator interface {
	Next() (domain.FormRow, error)
	Cursor() int
}

type ReplayService struct {
	driver  FormDriver
	formURL string
}

type ReplayOutput struct {
	Submitted int
	// Cursor is the index of the next row to submit. After a failure it points
	// at the failed row.
	Cursor int
}

func NewReplayService(driver FormDriver, formURL string) (*ReplayService, error) {
	if driver == nil {
		return nil, errors.New("usecase: form driver must not be nil")
	}
	formURL = strings.TrimSpace(formURL)
	if formURL == "" {
		formURL = DefaultFormURL
	}
	return &ReplayService{driver: driver, formURL: formURL}, nil
}

// Replay submits every remaining row in order within one browser session.
// The first failure stops the run.
func (s *ReplayService) Replay(ctx context.Context, rows RowIterator) (ReplayOutput, error) {
	out := ReplayOutput{Cursor: rows.Cursor()}

	log.Info().Str("url", s.formURL).Msg("Navigating to form")
	if err := s.driver.Navigate(ctx, s.formURL); err != nil {
		return out, newError(ErrorBrowser, "navigate_error", err)
	}

	for {
		out.Cursor = rows.Cursor()
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, newError(ErrorSource, "row_read_error", err)
		}

		log.Info().Int("row", out.Cursor).Str("name", row.Name).Msg("Processing entry")
		if err := s.submit(ctx, row); err != nil {
			return out, newError(ErrorBrowser, "submit_error", err)
		}
		out.Submitted++
		log.Info().Int("row", out.Cursor).Str("name", row.Name).Msg("Successfully submitted entry")

		if err := s.driver.Reload(ctx); err != nil {
			out.Cursor = rows.Cursor()
			return out, newError(ErrorBrowser, "reload_error", err)
		}
	}
}

func (s *ReplayService) submit(ctx context.Context, row domain.FormRow) error {
	if err := s.driver.Fill(ctx, selectorName, row.Name); err != nil {
		return err
	}
	if err := s.driver.Select(ctx, selectorBring, row.Bring); err != nil {
		return err
	}
	if row.ParticipateInHackathon {
		if err := s.driver.Check(ctx, labelHackathon); err != nil {
			return err
		}
	}
	if err := s.driver.SetValue(ctx, selectorArrival, row.ArrivalTime); err != nil {
		return err
	}
	if err := s.driver.Fill(ctx, selectorComments, row.Comments); err != nil {
		return err
	}
	// The form's "are you a bot" box is always ticked.
	if err := s.driver.Check(ctx, labelBot); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, labelSubmit); err != nil {
		return err
	}
	return s.driver.WaitForText(ctx, confirmationText)
}
