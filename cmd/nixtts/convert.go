package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/go-nix-tts/internal/audio"
	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/tts"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var text string
	var inPath string
	var out string
	var modelID string
	var normalize bool
	var fadeInMS float64
	var fadeOutMS float64

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert text to a WAV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if text != "" && inPath != "" {
				return fmt.Errorf("use --text or --in, not both")
			}

			modelDir, err := resolveModelDir(cfg, modelID)
			if err != nil {
				return err
			}
			cfg.Paths.ModelDir = modelDir

			hooks := buildConvertHooks(cfg, normalize, fadeInMS, fadeOutMS)

			conv, err := tts.NewConverter(cfg, hooks...)
			if err != nil {
				return err
			}
			defer conv.Close()

			// File-to-file conversions go through ConvertFile so the output
			// is written atomically.
			if inPath != "" && out != "-" {
				return mapConvertError(conv.ConvertFile(cmd.Context(), inPath, out))
			}

			inputText, err := readConvertText(text, inPath, os.Stdin)
			if err != nil {
				return err
			}

			samples, err := conv.Convert(cmd.Context(), inputText)
			if err != nil {
				return mapConvertError(err)
			}

			wavData, err := audio.EncodeWAV(samples, conv.SampleRate())
			if err != nil {
				return fmt.Errorf("encode WAV: %w", err)
			}

			return writeConvertOutput(out, wavData, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to convert (if empty, read --in or stdin)")
	cmd.Flags().StringVar(&inPath, "in", "", "Input text file")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&modelID, "model", "", "Model ID from the models registry (overrides --model-dir)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Peak-normalize output audio")
	cmd.Flags().Float64Var(&fadeInMS, "fade-in-ms", 0, "Apply linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&fadeOutMS, "fade-out-ms", 0, "Apply linear fade-out duration in milliseconds")

	return cmd
}

// buildConvertHooks assembles the post-processing chain from the DSP flags.
// Fades need the output sample rate, which follows the converter defaulting.
func buildConvertHooks(cfg config.Config, normalize bool, fadeInMS, fadeOutMS float64) []audio.Hook {
	rate := cfg.TTS.SampleRate
	if rate < 1 {
		rate = audio.DefaultSampleRate
	}

	var hooks []audio.Hook
	if normalize {
		hooks = append(hooks, audio.PeakNormalize)
	}
	if fadeInMS > 0 {
		hooks = append(hooks, func(samples []float32) []float32 {
			return audio.FadeIn(samples, rate, fadeInMS)
		})
	}
	if fadeOutMS > 0 {
		hooks = append(hooks, func(samples []float32) []float32 {
			return audio.FadeOut(samples, rate, fadeOutMS)
		})
	}
	return hooks
}

func readConvertText(text, inPath string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	if inPath != "" {
		b, err := os.ReadFile(inPath)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide --text, --in, or pipe text on stdin")
	}
	return input, nil
}

func writeConvertOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return audio.WriteFile(outPath, wavData)
}

func mapConvertError(err error) error {
	if errors.Is(err, tts.ErrNothingToSynthesize) {
		return fmt.Errorf("convert failed: input contains no synthesizable text: %w", err)
	}
	return err
}
