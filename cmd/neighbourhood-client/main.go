// Command neighbourhood-client connects to a home server and exposes a
// minimal line-oriented chat session: a typed "@fp1,fp2 text" line is
// sent as a private chat to those fingerprints, any other line as
// public_chat, and delivered messages are printed as they arrive.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olaf-mesh/neighbourhood/internal/client"
	"github.com/olaf-mesh/neighbourhood/internal/cryptoutil"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
)

var (
	home      string
	keyPath   string
	keygenOut string
)

var rootCmd = &cobra.Command{
	Use:   "neighbourhood-client",
	Short: "Connect to a neighbourhood overlay server and chat",
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Dial a home server and start an interactive chat session",
	RunE:  runConnect,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA-2048 client identity keypair",
	RunE:  runKeygen,
}

func init() {
	connectCmd.Flags().StringVar(&home, "home", "localhost:4678", "home server address (host:port)")
	connectCmd.Flags().StringVar(&keyPath, "key", "client", "identity key path prefix (reads <key>.key / <key>.pub)")

	keygenCmd.Flags().StringVar(&keygenOut, "out", "client", "output path prefix (writes <out>.key and <out>.pub)")

	rootCmd.AddCommand(connectCmd, keygenCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	kp, err := loadOrGenerateClientKey(keyPath)
	if err != nil {
		return fmt.Errorf("load client key: %w", err)
	}

	log := logger.NewLogger(os.Stderr, logger.InfoLevel)
	c, err := client.New(kp, home, log)
	if err != nil {
		return fmt.Errorf("construct client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := c.Run(ctx); err != nil {
			log.Warn("client run loop exited", logger.Error(err))
		}
	}()

	fmt.Printf("fingerprint: %s\n", c.Fingerprint())
	go printBuffer(ctx, c)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.Connected() {
			fmt.Println("not connected yet, try again shortly")
			continue
		}
		if err := sendLine(c, line); err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}
	}
	return nil
}

// sendLine routes one typed line: "@fp1,fp2 text" sends a private chat
// to the named fingerprints, anything else is a public_chat broadcast.
func sendLine(c *client.Client, line string) error {
	if strings.HasPrefix(line, "@") {
		rest := strings.TrimPrefix(line, "@")
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) == 2 {
			recipients := strings.Split(parts[0], ",")
			return c.SendChat(recipients, parts[1])
		}
	}
	return c.SendPublicChat(line)
}

// printBuffer polls the client's delivered-message buffer and prints
// anything new; the buffer itself has no blocking-read API since
// multiple consumers (a future GUI, this CLI) may want independent
// views of it.
func printBuffer(ctx context.Context, c *client.Client) {
	seen := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs := c.Buffer()
			for _, m := range msgs[seen:] {
				fmt.Printf("[%s -> %s] %s\n", m.Sender, strings.Join(m.Participants, ","), m.Text)
			}
			seen = len(msgs)
		}
	}
}

func loadOrGenerateClientKey(prefix string) (*cryptoutil.KeyPair, error) {
	privPath, pubPath := prefix+".key", prefix+".pub"
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
