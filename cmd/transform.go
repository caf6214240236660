package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/capture"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/lehigh-university-libraries/chronobooth/internal/models"
	"github.com/lehigh-university-libraries/chronobooth/internal/scenes"
	"github.com/lehigh-university-libraries/chronobooth/internal/transform"
	"github.com/spf13/cobra"
)

func newTransformCmd() *cobra.Command {
	var (
		imagePath string
		frame     bool
		sceneID   string
		prompt    string
		analyze   bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform a single photo",
		Long: `Runs one photo through the booth: capture, optional analysis and
transformation with a preset scene or a custom edit.

With --frame the image is treated like a live camera frame and cropped to a
centered square first; otherwise it is sent as uploaded.`,
		Example: `  # Send a selfie to the Roaring 20s
  chronobooth transform --image me.jpg --scene 1920s --output me-1920s.png

  # Describe the person first, then apply a custom edit
  chronobooth transform --image me.jpg --analyze --prompt "Add a retro filter"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig(cmd)

			service, err := transform.NewService(cfg)
			if err != nil {
				return err
			}
			catalog, err := scenes.Default()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("unable to read image: %w", err)
			}
			img, err := media.Normalize(media.FromBytes(data))
			if err != nil {
				return err
			}

			b := booth.New("cli", service, booth.WithScenes(catalog))
			if err := b.EnterCamera(); err != nil {
				return err
			}

			var opener capture.Opener
			if frame {
				opener = capture.FrameOpener(img)
			}
			provider := capture.New(opener, b.Capture)
			defer provider.Close()

			if frame {
				if err := provider.Start(ctx); err != nil {
					return err
				}
				err = provider.Shoot(ctx)
			} else {
				err = provider.Upload(img)
			}
			if err != nil {
				return err
			}

			if analyze {
				if err := b.Analyze(ctx); err != nil {
					slog.Warn("Analysis failed, continuing without it", "err", err)
				} else {
					slog.Info("Analysis complete", "text", b.Snapshot().AnalysisText)
				}
			}

			if err := b.Transform(ctx, booth.Request{SceneID: sceneID, CustomText: prompt}); err != nil {
				return err
			}
			slog.Info(b.Snapshot().LoadingMessage)
			b.Wait()

			s := b.Snapshot()
			if s.State != models.StateResult {
				return fmt.Errorf("transformation failed: %s", s.LastError)
			}

			if output == "" {
				output = "chronobooth-result" + s.GeneratedImage.Extension()
			}
			if err := os.WriteFile(output, s.GeneratedImage.Data, 0644); err != nil {
				return fmt.Errorf("unable to write result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Photo to transform")
	cmd.Flags().BoolVar(&frame, "frame", false, "Treat the image as a camera frame and crop it square")
	cmd.Flags().StringVarP(&sceneID, "scene", "s", "", "Scene preset ID (see 'chronobooth scenes')")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom edit instead of a scene")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Describe the person first and include it in the prompt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the result (default chronobooth-result.<ext>)")
	_ = cmd.MarkFlagRequired("image")
	cmd.MarkFlagsMutuallyExclusive("scene", "prompt")
	cmd.MarkFlagsOneRequired("scene", "prompt")

	return cmd
}
