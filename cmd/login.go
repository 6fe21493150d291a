package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/blink-homekit/internal/pkg/blinkapi"
	"github.com/jake-scott/blink-homekit/internal/pkg/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Blink and save the session",
	Long: `Log in to the Blink account with its email and password.  Blink may
send a PIN by email or text to verify this client; pass it with --pin or
type it when asked.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return doLogin(os.Stdin, os.Stdout)
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("blink.email", "blink.password")
	},
}

func init() {
	loginCmd.Flags().String("email", "", "Blink account email")
	loginCmd.Flags().String("password", "", "Blink account password")
	loginCmd.Flags().String("pin", "", "client verification PIN sent by Blink")
	loginCmd.Flags().Duration("login-timeout", time.Second*30, "maximum duration of a login request, eg. 1m or 10s")

	errPanic(viper.GetViper().BindPFlag("blink.email", loginCmd.Flags().Lookup("email")))
	errPanic(viper.GetViper().BindPFlag("blink.password", loginCmd.Flags().Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("blink.pin", loginCmd.Flags().Lookup("pin")))
	errPanic(viper.GetViper().BindPFlag("blink.login-timeout", loginCmd.Flags().Lookup("login-timeout")))

	rootCmd.AddCommand(loginCmd)
}

func promptPIN(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Blink sent a verification PIN, enter it: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "reading PIN")
	}

	pin := strings.TrimSpace(line)
	if pin == "" {
		return "", errors.New("no PIN entered")
	}
	return pin, nil
}

func doLogin(in io.Reader, out io.Writer) error {
	ctx := context.Background()
	fileName := viper.GetString("blink.session-file")

	state, err := session.LoadOrNew(fileName)
	if err != nil {
		return err
	}

	client := blinkapi.NewLiveClient(state.WithContext(ctx)).WithTimeout(viper.GetDuration("blink.login-timeout"))
	creds := blinkapi.Credentials{
		Email:    viper.GetString("blink.email"),
		Password: viper.GetString("blink.password"),
		PIN:      viper.GetString("blink.pin"),
	}

	err = client.Login(ctx, creds)
	if errors.Is(err, blinkapi.ErrVerificationRequired) && creds.PIN == "" {
		pin, perr := promptPIN(in, out)
		if perr != nil {
			return perr
		}
		err = client.VerifyPIN(ctx, creds, pin)
	}
	if err != nil {
		return errors.Wrapf(err, "logging in as %s", creds.Email)
	}

	fmt.Fprintf(out, "Logged in to Blink account %d, session saved to %s\n", state.AccountID, fileName)
	return nil
}
