package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/client"
)

const usage = `usage: authcli [-addr URL] <command> [flags]

commands:
  send-code -phone PHONE
  login     -phone PHONE -code CODE
  register  -phone PHONE -code CODE -password PASSWORD -agree
`

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	global := flag.NewFlagSet("authcli", flag.ExitOnError)
	addr := global.String("addr", envOr("AUTH_API_URL", "http://localhost:3000"), "auth API base URL")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	c := client.New(*addr)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, c, args[0], args[1:]); err != nil {
		logger.WithError(err).Error("Command failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	phone := fs.String("phone", "", "11-digit mobile number")

	switch cmd {
	case "send-code":
		_ = fs.Parse(args)
		if err := c.SendCode(ctx, client.SendCodeForm{PhoneNumber: *phone}); err != nil {
			return err
		}
		fmt.Println("verification code sent")
		return nil

	case "login":
		code := fs.String("code", "", "verification code")
		_ = fs.Parse(args)
		session, err := c.Login(ctx, client.LoginForm{PhoneNumber: *phone, VerificationCode: *code})
		if err != nil {
			return err
		}
		return printJSON(session)

	case "register":
		code := fs.String("code", "", "verification code")
		password := fs.String("password", "", "login password")
		agree := fs.Bool("agree", false, "accept the user agreement")
		_ = fs.Parse(args)
		session, err := c.Register(ctx, client.RegisterForm{
			PhoneNumber:      *phone,
			VerificationCode: *code,
			Password:         *password,
			AgreeToTerms:     *agree,
		})
		if err != nil {
			return err
		}
		return printJSON(session)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
