package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"emadiff/internal/models"
	"emadiff/pkg/reduction"
)

// calibrationCmd derives the detector calibration from a reference scan
var calibrationCmd = &cobra.Command{
	Use:   "calibration start_angle end_angle step_size steps yc ny folder prefix xdet ydet lids_border output",
	Short: "Derive the per-channel calibration from a reference scan",
	Long: `Calibration loads the frames <folder>/<prefix><n>.tiff of a reference scan,
crops ny rows centred on row yc, detects the illuminated channel window shrunk by
lids_border on each side, and writes the per-channel angle offsets to output.`,
	Args: cobra.ExactArgs(12),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &argParser{args: args}
		job := reduction.CalibrationJob{
			Scan: models.ScanSpec{
				StartAngle: p.float(0, "start_angle"),
				EndAngle:   p.float(1, "end_angle"),
				StepSize:   p.float(2, "step_size"),
				Steps:      p.int(3, "steps"),
				Folder:     p.string(6),
				Prefix:     p.string(7),
			},
			Window:     models.RowWindowAround(p.int(4, "yc"), p.int(5, "ny")),
			DetX:       p.int(8, "xdet"),
			DetY:       p.int(9, "ydet"),
			LidsBorder: p.int(10, "lids_border"),
			OutputPath: p.string(11),
		}
		if p.err != nil {
			return p.err
		}

		r, err := newReducer()
		if err != nil {
			return err
		}
		res, err := r.Calibrate(cmd.Context(), job)
		if err != nil {
			logger.Error("calibration failed", zap.Error(err))
			return err
		}

		logger.Info("calibration saved",
			zap.String("file", res.Path),
			zap.Ints("mythen_lids", []int{res.Calibration.ROI.Start, res.Calibration.ROI.End}),
			zap.Int("missing_channels", len(res.Calibration.Missing)),
			zap.String("run_id", res.RunID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrationCmd)
}
