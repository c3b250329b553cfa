package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	goGuard "github.com/MrEthical07/goGuard"
)

const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML document accepted by goguard seed.
type seedFile struct {
	Accounts []seedAccount `yaml:"accounts"`
}

type seedAccount struct {
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Email          string   `yaml:"email"`
	FirstName      string   `yaml:"firstName"`
	MiddleName     string   `yaml:"middleName"`
	LastName       string   `yaml:"lastName"`
	SecondLastName string   `yaml:"secondLastName"`
	Branch         string   `yaml:"branch"`
	City           string   `yaml:"city"`
	JobTitle       string   `yaml:"jobTitle"`
	Mobile         string   `yaml:"mobile"`
	Phone          string   `yaml:"phone"`
	Address        string   `yaml:"address"`
	Roles          []string `yaml:"roles"`
}

func (a seedAccount) input() goGuard.CreateAccountInput {
	roles := make([]goGuard.Role, len(a.Roles))
	for i, r := range a.Roles {
		roles[i] = goGuard.Role(r)
	}
	return goGuard.CreateAccountInput{
		Username:       a.Username,
		Password:       a.Password,
		Email:          a.Email,
		FirstName:      a.FirstName,
		MiddleName:     a.MiddleName,
		LastName:       a.LastName,
		SecondLastName: a.SecondLastName,
		Branch:         a.Branch,
		City:           a.City,
		JobTitle:       a.JobTitle,
		Mobile:         a.Mobile,
		Phone:          a.Phone,
		Address:        a.Address,
		Roles:          roles,
	}
}

func parseSeedFile(r io.Reader) (*seedFile, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	if len(doc.Accounts) == 0 {
		return nil, oops.Code("SEED_INVALID").Errorf("seed file lists no accounts")
	}
	return &doc, nil
}

type seedResult struct {
	created int
	skipped int
}

// applySeed creates every account that does not exist yet. Existing
// usernames are skipped so the command can be re-run.
func applySeed(ctx context.Context, engine *goGuard.Engine, doc *seedFile) (seedResult, error) {
	var res seedResult
	for _, a := range doc.Accounts {
		_, err := engine.CreateAccount(ctx, a.input())
		switch {
		case err == nil:
			res.created++
		case errors.Is(err, goGuard.ErrAccountExists):
			res.skipped++
		default:
			return res, oops.Code("SEED_FAILED").With("username", a.Username).Wrap(err)
		}
	}
	return res, nil
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var (
		path    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create accounts listed in a YAML file",
		Long: `Creates the accounts listed under "accounts:" in the given file.
Accounts whose username already exists are skipped, so seeding is idempotent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return oops.Code("SEED_INVALID").With("path", path).Wrap(err)
			}
			defer f.Close()
			doc, err := parseSeedFile(f)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rt, err := newRuntime(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := applySeed(ctx, rt.engine, doc)
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d accounts (%d already present)\n", res.created, res.skipped)
			return nil
		},
	}

	registerRuntimeFlags(cmd.Flags())
	cmd.Flags().StringVar(&path, "file", "seed.yaml", "seed file")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for store operations")

	return cmd
}
