// Command neighbourhood-server runs one server node of the overlay: the
// websocket endpoint for local clients and peer servers, the plain-HTTP
// file endpoint, and (optionally) a Prometheus metrics listener.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olaf-mesh/neighbourhood/config"
	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/fileserver"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
	"github.com/olaf-mesh/neighbourhood/internal/server"
)

var (
	configPath string
	envFile    string
	host       string
	port       int
)

var rootCmd = &cobra.Command{
	Use:   "neighbourhood-server",
	Short: "Run a federated neighbourhood chat overlay server node",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server event loop, websocket endpoint, and file endpoint",
	RunE:  runServe,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA-2048 server identity keypair",
	RunE:  runKeygen,
}

var (
	keygenOut string
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "path to a .env file (optional)")
	serveCmd.Flags().StringVar(&host, "host", "", "override the configured bind host")
	serveCmd.Flags().IntVar(&port, "port", 0, "override the configured bind port")

	keygenCmd.Flags().StringVar(&keygenOut, "out", "server", "output path prefix (writes <out>.key and <out>.pub)")

	rootCmd.AddCommand(serveCmd, keygenCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{Path: configPath, EnvFile: envFile})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	log := logger.NewLogger(os.Stdout, logger.ParseLevelString(cfg.Logging.Level))

	keyPair, err := loadOrGenerateServerKey()
	if err != nil {
		return fmt.Errorf("load server key: %w", err)
	}

	selfAddr := cfg.Server.Addr()
	srv := server.New(cfg, keyPair, log, selfAddr)

	fs, err := fileserver.New(cfg.Upload, log)
	if err != nil {
		return fmt.Errorf("init file endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	mux.Handle("/", fs.Handler())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go srv.DialAll(ctx)
	go srv.Run(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			log.Info("metrics endpoint listening", logger.String("addr", cfg.Metrics.Addr))
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Warn("metrics endpoint stopped", logger.Error(err))
			}
		}()
	}

	log.Info("server listening", logger.String("addr", cfg.Server.Addr()))
	httpServer := &http.Server{Addr: cfg.Server.Addr(), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func loadOrGenerateServerKey() (*cryptoutil.KeyPair, error) {
	const privPath, pubPath = "server.key", "server.pub"
	if kp, err := cryptoutil.LoadKeyPair(privPath, pubPath); err == nil {
		return kp, nil
	}
	kp, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	if err := cryptoutil.SaveKeyPair(kp, privPath, pubPath); err != nil {
		return nil, err
	}
	return kp, nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	privPath := keygenOut + ".key"
	pubPath := keygenOut + ".pub"
	if err := cryptoutil.SaveKeyPair(kp, privPath, pubPath); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	fp, err := cryptoutil.Fingerprint(kp.Public)
	if err != nil {
		return fmt.Errorf("compute fingerprint: %w", err)
	}
	fmt.Printf("wrote %s and %s\nfingerprint: %s\n", privPath, pubPath, fp)
	return nil
}
