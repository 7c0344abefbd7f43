package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"relay-pipeline/internal/integrations/browser"
	"relay-pipeline/internal/integrations/objectstore"
	"relay-pipeline/internal/logging"
	"relay-pipeline/internal/usecase"
)

// CLI flags
var (
	headlessFlag   bool
	noHeadlessFlag bool
	startRowFlag   int
	formURLFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "form-replayer <bucket_name> <file_key>",
	Short: "Submit every row of a CSV stored in S3 through the registration form",
	Long: `Form Replayer downloads a CSV from S3 and submits each row through the
registration web form in a single browser session, waiting for the
confirmation message after every submission.

A failed run logs the row it stopped at; pass it to --start-row to resume.

Examples:
  form-replayer my-bucket your_folder_in_bucket/guests.csv
  form-replayer my-bucket guests.csv --no-headless
  form-replayer my-bucket guests.csv --start-row 12`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	rootCmd.Flags().BoolVar(&headlessFlag, "headless", true, "Run the browser without a window")
	rootCmd.Flags().BoolVar(&noHeadlessFlag, "no-headless", false, "Show the browser window")
	rootCmd.Flags().IntVar(&startRowFlag, "start-row", 0, "Number of data rows to skip before submitting")
	rootCmd.Flags().StringVar(&formURLFlag, "form-url", usecase.DefaultFormURL, "Registration form URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Form replay failed")
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	logging.Init(true)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not read .env")
	}

	bucket, key := args[0], args[1]
	opts, err := resolveOptions(headlessFlag, noHeadlessFlag, startRowFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	store, err := objectstore.New(awss3.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	// The whole CSV is fetched up front; a browser session can outlive an
	// idle S3 connection.
	log.Info().Str("bucket", bucket).Str("key", key).Msg("Downloading CSV")
	data, err := store.ReadAll(ctx, bucket, key)
	if err != nil {
		return err
	}
	rows, err := usecase.NewRowSource(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	defer rows.Close()

	if opts.startRow > 0 {
		if err := rows.Skip(opts.startRow); err != nil {
			return err
		}
		log.Info().Int("skipped", rows.Cursor()).Msg("Resuming replay")
	}

	driver, err := browser.New(ctx, browser.Options{Headless: opts.headless})
	if err != nil {
		return err
	}
	defer driver.Close()

	replay, err := usecase.NewReplayService(driver, formURLFlag)
	if err != nil {
		return err
	}
	return run(ctx, replay, rows)
}

type replayOptions struct {
	headless bool
	startRow int
}

// resolveOptions combines the flags; --no-headless wins over --headless.
func resolveOptions(headless, noHeadless bool, startRow int) (replayOptions, error) {
	if startRow < 0 {
		return replayOptions{}, errors.New("--start-row must not be negative")
	}
	return replayOptions{headless: headless && !noHeadless, startRow: startRow}, nil
}

func run(ctx context.Context, replay *usecase.ReplayService, rows usecase.RowIterator) error {
	out, err := replay.Replay(ctx, rows)
	if err != nil {
		log.Error().
			Err(err).
			Int("submitted", out.Submitted).
			Int("resumeFrom", out.Cursor).
			Msg("Replay stopped; rerun with --start-row to resume")
		return err
	}
	log.Info().Int("submitted", out.Submitted).Msg("All entries submitted")
	return nil
}
