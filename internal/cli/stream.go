package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/majedsharif/corti-scribe/internal/client"
)

func newStreamCmd() *cobra.Command {
	var (
		url        string
		frameBytes int
		intervalMs int
	)

	cmd := &cobra.Command{
		Use:   "stream <audio.raw>",
		Short: "Play a raw 16-bit PCM file into a running gateway",
		Long: "stream acts as a headless browser: it opens a recording session against a\n" +
			"running gateway, plays the given raw PCM file as microphone input at\n" +
			"real-time pace, prints live transcript and fact updates, then ends the\n" +
			"session gracefully.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			c, err := client.Dial(ctx, url, log)
			if err != nil {
				return err
			}
			defer c.Close()

			// Periodically print what the mirror has accumulated.
			progressDone := make(chan struct{})
			go func() {
				ticker := time.NewTicker(2 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						c.WithState(func(s *client.State) {
							log.Info().
								Str("status", string(s.Status)).
								Int("facts", len(s.Facts)).
								Float64("credits", s.Credits).
								Dur("elapsed", s.Elapsed().Round(time.Second)).
								Str("interim", s.Interim()).
								Msg("session progress")
						})
					case <-progressDone:
						return
					case <-c.Done():
						return
					}
				}
			}()
			defer close(progressDone)

			if err := c.StreamFile(ctx, args[0], frameBytes, time.Duration(intervalMs)*time.Millisecond, nil); err != nil {
				return fmt.Errorf("streaming audio: %w", err)
			}

			endCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := c.End(endCtx); err != nil {
				return fmt.Errorf("ending session: %w", err)
			}

			snap := c.Snapshot()
			if snap.LastError != "" {
				return fmt.Errorf("session failed: %s", snap.LastError)
			}

			c.WithState(func(s *client.State) {
				fmt.Println("--- transcript ---")
				fmt.Println(s.Transcript())
				fmt.Println("--- facts ---")
				for _, f := range s.Facts {
					fmt.Printf("[%s] %s\n", f.Group, f.Text)
				}
				fmt.Printf("credits used: %.2f\n", s.Credits)
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8080/ws", "gateway WebSocket URL")
	cmd.Flags().IntVar(&frameBytes, "frame-bytes", 8192, "audio frame size in bytes")
	cmd.Flags().IntVar(&intervalMs, "interval-ms", 250, "delay between frames")

	return cmd
}
