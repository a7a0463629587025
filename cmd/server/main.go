// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/diagnosis-service/internal/version"
)

const serviceName = "diagnosis-service"

var cfgFile string

// rootCmd runs the server when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Breast cancer diagnosis inference service",
	Long: `diagnosis-service serves a pre-trained binary classifier over HTTP.
Clients POST a 30-feature vector to /predict and receive the predicted class
and the class probabilities.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

// serveCmd is an explicit alias for the root command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the model and start serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()
		fmt.Printf("%s %s\n", serviceName, version.Full())
		if info.BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", info.BuildDate)
		}
		fmt.Printf("Go version: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (optional)")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		f := cmd.Flags()
		f.Int("port", 5000, "HTTP API port")
		f.Int("grpc-port", 50051, "gRPC health port")
		f.Int("metrics-port", 9100, "Prometheus metrics port")
		f.String("model", "model.onnx", "Path to the model artifact")
		f.String("model-format", "", "Model format: onnx, forest or mock (default: from file extension)")
		f.String("model-name", "Cancer-RandomForest", "Model descriptor reported by /health")
		f.String("cache-backend", "memory", "Prediction cache: memory, redis or none")
		f.String("redis", "localhost:6379", "Redis address for the redis cache backend")
		f.String("audit-db", "", "SQLite path for the prediction audit log (empty disables)")
		f.String("log-level", "info", "Log level: debug, info, warn, error")
	}

	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
