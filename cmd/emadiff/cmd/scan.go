package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"emadiff/internal/models"
	"emadiff/pkg/reduction"
)

// scanCmd reduces a measurement scan into a diffractogram
var scanCmd = &cobra.Command{
	Use:   "scan start_angle end_angle step_size steps yc ny output_folder scan_folder prefix xdet calibration_file",
	Short: "Reduce a measurement scan into a diffractogram",
	Long: `Scan loads the frames <scan_folder>/<prefix><n>.tiff, maps every pixel inside
the calibrated channel window to its two-theta address, bins the addresses in
step_size wide bins and writes <output_folder>/<prefix>proc.emd.`,
	Args: cobra.ExactArgs(11),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &argParser{args: args}
		job := reduction.ScanJob{
			Scan: models.ScanSpec{
				StartAngle: p.float(0, "start_angle"),
				EndAngle:   p.float(1, "end_angle"),
				StepSize:   p.float(2, "step_size"),
				Steps:      p.int(3, "steps"),
				Folder:     p.string(7),
				Prefix:     p.string(8),
			},
			Window:          models.RowWindowAround(p.int(4, "yc"), p.int(5, "ny")),
			OutputFolder:    p.string(6),
			DetX:            p.int(9, "xdet"),
			CalibrationPath: p.string(10),
		}
		if p.err != nil {
			return p.err
		}

		r, err := newReducer()
		if err != nil {
			return err
		}
		res, err := r.Scan(cmd.Context(), job)
		if err != nil {
			logger.Error("scan failed", zap.Error(err))
			return err
		}

		logger.Info("diffractogram saved",
			zap.String("file", res.Path),
			zap.Int("bins", len(res.Rows)),
			zap.String("run_id", res.RunID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
