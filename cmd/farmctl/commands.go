package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/farmcart/internal/catalog"
	"github.com/example/farmcart/internal/orders"
	"github.com/example/farmcart/internal/server"
	"github.com/example/farmcart/internal/service"
)

// opener 按配置文件路径打开服务依赖
type opener func(path string) (*server.Deps, error)

// runner 为子命令打开依赖并在结束时释放
type runner func(run func(ctx context.Context, cmd *cobra.Command, d *server.Deps) error) func(*cobra.Command, []string) error

func newRootCmd(open opener) *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "farmctl",
		Short:        "farmcart maintenance commands",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("FARMCART_CONFIG"), "config file (default ./config/farmcart.yaml)")

	var withDeps runner = func(run func(ctx context.Context, cmd *cobra.Command, d *server.Deps) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			d, err := open(cfgPath)
			if err != nil {
				return err
			}
			defer d.Close()
			return run(cmd.Context(), cmd, d)
		}
	}

	root.AddCommand(newSeedCmd(withDeps), newSetRoleCmd(withDeps), newOrdersCmd(withDeps))
	return root
}

// seedFile 种子数据文件格式
type seedFile struct {
	Products []seedProduct `yaml:"products"`
	Users    []seedUser    `yaml:"users"`
}

type seedProduct struct {
	Title       string  `yaml:"title"`
	Category    string  `yaml:"category"`
	Price       float64 `yaml:"price"`
	ActualPrice float64 `yaml:"actual_price"`
	Weight      float64 `yaml:"weight"`
	Description string  `yaml:"description"`
	ImageURL    string  `yaml:"image_url"`
}

type seedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func (p seedProduct) input() service.ProductInput {
	return service.ProductInput{
		Title:       p.Title,
		Category:    p.Category,
		Price:       decimal.NewFromFloat(p.Price),
		ActualPrice: decimal.NewFromFloat(p.ActualPrice),
		Weight:      decimal.NewFromFloat(p.Weight),
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}

// seed 已存在同名同分类的商品时跳过
func seed(ctx context.Context, out io.Writer, d *server.Deps, f *seedFile) error {
	existing, err := d.Products.List(ctx, catalog.Query{})
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Category+"/"+p.Title)] = true
	}

	created := 0
	for _, sp := range f.Products {
		key := strings.ToLower(sp.Category + "/" + sp.Title)
		if seen[key] {
			continue
		}
		if _, err := d.Products.Create(ctx, sp.input(), "farmctl"); err != nil {
			return fmt.Errorf("product %q: %w", sp.Title, err)
		}
		seen[key] = true
		created++
	}
	for _, su := range f.Users {
		if _, err := d.Users.EnsureUser(ctx, service.SignUpInput{Email: su.Email, Name: su.Name, Password: su.Password}); err != nil {
			return fmt.Errorf("user %q: %w", su.Email, err)
		}
		if su.Role != "" {
			if err := d.Users.SetRoleByEmail(ctx, su.Email, su.Role); err != nil {
				return fmt.Errorf("user %q: %w", su.Email, err)
			}
		}
	}
	fmt.Fprintf(out, "seeded %d products (%d skipped), %d users\n", created, len(f.Products)-created, len(f.Users))
	return nil
}

func newSeedCmd(with runner) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "load products and users from a yaml file",
		RunE: with(func(ctx context.Context, cmd *cobra.Command, d *server.Deps) error {
			fh, err := os.Open(file)
			if err != nil {
				return err
			}
			defer fh.Close()
			f, err := loadSeed(fh)
			if err != nil {
				return err
			}
			return seed(ctx, cmd.OutOrStdout(), d, f)
		}),
	}
	cmd.Flags().StringVar(&file, "file", "config/products.yaml", "seed file")
	return cmd
}

func newSetRoleCmd(with runner) *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "set the role tag of a user (sub_admin, delivery_boy, user)",
		RunE: with(func(ctx context.Context, cmd *cobra.Command, d *server.Deps) error {
			if err := d.Users.SetRoleByEmail(ctx, email, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", "", "new role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newOrdersCmd(with runner) *cobra.Command {
	var rng, tab string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "print orders grouped by date and customer",
		RunE: with(func(ctx context.Context, cmd *cobra.Command, d *server.Deps) error {
			groups, err := d.Orders.Grouped(ctx, orders.ParseRange(rng), orders.ParseTab(tab))
			if err != nil {
				return err
			}
			printGroups(cmd.OutOrStdout(), groups)
			return nil
		}),
	}
	cmd.Flags().StringVar(&rng, "range", "all", "all, today, week or month")
	cmd.Flags().StringVar(&tab, "tab", "all", "all, vegetables or leafy")
	return cmd
}

func printGroups(out io.Writer, groups []*orders.DateGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "no orders")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCUSTOMER\tORDERS\tITEMS\tTOTAL")
	for _, g := range groups {
		for _, c := range g.Customers {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", g.Date, c.Customer, c.OrderCount, c.ItemCount, c.Total.StringFixed(2))
		}
	}
	_ = w.Flush()
}
