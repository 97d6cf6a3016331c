package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tgops/internal/config"
	"tgops/internal/domain"
	"tgops/internal/store/sqlite"
	"tgops/internal/telegram"
)

func configureCmd() *cobra.Command {
	var (
		creds   domain.Credentials
		persist bool
		backend string
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write Telegram API credentials to config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.cfg
			if creds.APIID != 0 {
				cfg.Telegram.APIID = creds.APIID
			}
			if creds.APIHash != "" {
				cfg.Telegram.APIHash = creds.APIHash
			}
			if creds.Phone != "" {
				cfg.Telegram.Phone = creds.Phone
			}
			if backend != "" {
				cfg.SessionStore = config.SessionBackend(backend)
			}
			// Passwords and session strings stay in the environment.
			cfg.Telegram.Password = ""
			cfg.Telegram.Session = ""
			if err := cfg.Save(); err != nil {
				return err
			}
			if persist {
				if err := config.PersistDataDir(cfg.DataDir); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", cfg.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&creds.APIID, "api-id", 0, "Telegram API ID")
	cmd.Flags().StringVar(&creds.APIHash, "api-hash", "", "Telegram API hash")
	cmd.Flags().StringVar(&creds.Phone, "phone", "", "account phone number")
	cmd.Flags().StringVar(&backend, "session-store", "", "session backend: file or sqlite")
	cmd.Flags().BoolVar(&persist, "persist", false, "remember --data-dir for later runs")
	return cmd
}

func loginCmd() *cobra.Command {
	var useQR bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the session string",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.service()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.ErrOrStderr()

			var status telegram.AuthStatus
			if useQR {
				status, err = svc.QRLogin(ctx, func(token domain.TelegramQRToken) error {
					return showQR(out, env.cfg.DataDir, token)
				}, passwordPrompt(in, out))
			} else {
				status, err = svc.Login(ctx, telegram.LoginPrompts{
					Code: func(_ context.Context, phone string) (string, error) {
						return prompt(in, out, fmt.Sprintf("Code sent to %s: ", phone))
					},
					Password: passwordPrompt(in, out),
				})
			}
			if err != nil {
				return err
			}
			env.rememberAccount(ctx, status)
			fmt.Fprintf(out, "Signed in as %s (%d)\n", status.UserDisplay, status.UserID)

			encoded, err := svc.SessionString(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useQR, "qr", false, "sign in by scanning a QR code from another device")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is authorized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := env.service()
			if err != nil {
				return err
			}
			status, err := svc.AuthStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !status.Authorized {
				fmt.Fprintln(cmd.OutOrStdout(), "not authorized")
				return nil
			}
			env.rememberAccount(cmd.Context(), status)
			fmt.Fprintf(cmd.OutOrStdout(), "authorized as %s (%d)\n", status.UserDisplay, status.UserID)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session and cached peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch storage := env.sessionStorage().(type) {
			case *sqlite.SessionStorage:
				if err := env.store.DeleteSession(ctx, sessionName(env.cfg)); err != nil {
					return err
				}
			case *telegram.FileSession:
				if err := os.Remove(storage.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			default:
				return errors.New("the session comes from TGOPS_SESSION; unset it instead")
			}
			if _, err := env.store.PurgePeers(ctx, 0); err != nil {
				return err
			}
			if err := env.store.SetSetting(ctx, accountSetting, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func passwordPrompt(in *bufio.Reader, out io.Writer) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return prompt(in, out, "Two-step verification password: ")
		}
		fmt.Fprint(out, "Two-step verification password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
}

// showQR writes the login QR code next to the data and prints its location.
func showQR(out io.Writer, dir string, token domain.TelegramQRToken) error {
	path := filepath.Join(dir, "login-qr.png")
	if err := os.WriteFile(path, token.PNG, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(out, "Scan %s (or open %s) in Telegram > Settings > Devices before %s\n",
		path, token.URL, token.ExpiresAt.Local().Format("15:04:05"))
	return nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
