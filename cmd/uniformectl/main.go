package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/erazemk/uniforme/internal/catalog"
	"github.com/erazemk/uniforme/internal/client"
	"github.com/erazemk/uniforme/internal/config"
	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/limits"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/orders"
)

const usage = `Usage: uniformectl <command> [flags]

Commands:
  login -u <user> [-p <password>]   sign in and store the token
  logout                            revoke the stored token
  catalog [-level <name>]           list items with what you can still order
  orders [-sort newest|oldest]      list your orders by category
  order <item-id>:<qty> ...         place an order
  receipt <order-id>                show an order's claim receipt
  cancel <order-id>                 cancel an order
  watch                             follow realtime events and limit changes

Environment: UNIFORME_URL, UNIFORME_TOKEN_FILE, UNIFORME_POLL_INTERVAL.
`

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "-help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stdout, usage)
		os.Exit(0)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, out: os.Stdout}
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Client
	out io.Writer
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "catalog":
		return a.catalog(ctx, args)
	case "orders":
		return a.orders(ctx, args)
	case "order":
		return a.order(ctx, args)
	case "receipt":
		return a.receipt(ctx, args)
	case "cancel":
		return a.cancel(ctx, args)
	case "watch":
		return a.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// client returns an API client carrying the stored token.
func (a *app) client() (*client.Client, error) {
	data, err := os.ReadFile(a.cfg.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("not logged in, run: uniformectl login -u <user>")
	}
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	return client.New(a.cfg.URL, strings.TrimSpace(string(data))), nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var username, password string
	fs.StringVar(&username, "u", "", "")
	fs.StringVar(&password, "p", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("-u is required")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	c := client.New(a.cfg.URL, "")
	token, err := c.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.cfg.TokenFile, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s.\n", username)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	if err := c.Logout(ctx); err != nil {
		return err
	}
	return os.Remove(a.cfg.TokenFile)
}

// limits fetches the quota snapshot. An incomplete profile is reported but
// leaves the snapshot nil, so every item evaluates as provisional.
func (a *app) limits(ctx context.Context, c *client.Client) *limits.Refresher {
	r := limits.NewRefresher(c, limits.WithPollInterval(a.cfg.PollInterval))
	if err := r.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrProfileIncomplete) {
			fmt.Fprintln(os.Stderr, "Your profile is incomplete (gender or education level missing). Ordering is disabled.")
		} else {
			fmt.Fprintf(os.Stderr, "warning: could not load order limits: %v\n", err)
		}
	}
	return r
}

func (a *app) catalog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	var level string
	fs.StringVar(&level, "level", "", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	if level == "" && me.Student != nil {
		level = me.Student.EducationLevel
	}
	items, err := c.ListItems(ctx, level)
	if err != nil {
		return err
	}

	var snap *model.LimitSnapshot
	if me.Student != nil {
		snap = a.limits(ctx, c).Snapshot()
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tLEVEL\tSIZES\tSTOCK\tPRICE\tCAN ORDER\tNOTE")
	for _, e := range catalog.Group(items) {
		res := eligibility.Evaluate(eligibility.Input{Item: e.Item(), Snapshot: snap, Student: me.Student})
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Name, e.EducationLevel, sizes(e), e.Stock, e.Price.StringFixed(2), canOrder(res), note(res))
	}
	return tw.Flush()
}

func sizes(e catalog.Entry) string {
	var out []string
	for _, v := range e.Variants {
		if v.Size != "" {
			out = append(out, fmt.Sprintf("%s(%d)", v.Size, v.Stock))
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, " ")
}

func canOrder(res eligibility.Result) string {
	switch {
	case res.Provisional:
		return "?"
	case !res.CanOrder():
		return "no"
	default:
		return fmt.Sprintf("up to %d", res.EffectiveMax)
	}
}

func note(res eligibility.Result) string {
	parts := make([]string, 0, len(res.Reasons)+1)
	for _, r := range res.Reasons {
		parts = append(parts, string(r))
	}
	if res.Intent == eligibility.IntentPreOrder {
		parts = append(parts, "pre-order")
	}
	return strings.Join(parts, ", ")
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	var sortOrder string
	fs.StringVar(&sortOrder, "sort", string(orders.SortNewest), "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sortOrder != string(orders.SortNewest) && sortOrder != string(orders.SortOldest) {
		return fmt.Errorf("-sort must be newest or oldest")
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	list, err := c.ListOrders(ctx)
	if err != nil {
		return err
	}

	b := orders.Partition(list)
	for _, section := range []struct {
		title string
		list  []model.Order
	}{
		{"Pre-orders", b.PreOrder},
		{"Active", b.Active},
		{"Claimed", b.Claimed},
		{"Other", b.Other},
	} {
		orders.Sort(section.list, orders.SortOrder(sortOrder))
		fmt.Fprintf(a.out, "%s (%d)\n", section.title, len(section.list))
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, o := range section.list {
			date := "-"
			if d := orders.Date(o); !d.IsZero() {
				date = d.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", o.OrderNumber, o.Status, date, o.TotalAmount.StringFixed(2), o.ID)
		}
		tw.Flush()
	}
	return nil
}

func (a *app) order(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: uniformectl order <item-id>:<qty> ...")
	}
	lines := make([]client.OrderLine, 0, len(args))
	for _, arg := range args {
		var line client.OrderLine
		if _, err := fmt.Sscanf(arg, "%d:%d", &line.ItemID, &line.Quantity); err != nil || line.Quantity < 1 {
			return fmt.Errorf("invalid line %q, want <item-id>:<qty>", arg)
		}
		lines = append(lines, line)
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	o, err := c.CreateOrder(ctx, lines)
	if err != nil {
		return err
	}
	kind := "Order"
	if o.OrderType == model.OrderTypePreOrder {
		kind = "Pre-order"
	}
	fmt.Fprintf(a.out, "%s %s placed (%s), total %s.\n", kind, o.OrderNumber, o.Status, o.TotalAmount.StringFixed(2))
	return nil
}

func (a *app) receipt(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: uniformectl receipt <order-id>")
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	rec, err := c.GetReceipt(ctx, args[0])
	if err != nil {
		return err
	}
	if rec.Payload != nil {
		fmt.Fprintf(a.out, "Order:     %s\n", rec.Payload.OrderNumber)
		fmt.Fprintf(a.out, "Student:   %s\n", rec.Payload.StudentName)
	}
	fmt.Fprintf(a.out, "Expires:   %s (%d school days left)\n", rec.ExpiresOn, max(rec.RemainingValidDays, 0))
	fmt.Fprintf(a.out, "QR:        %s\n", rec.QR)
	return nil
}

func (a *app) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: uniformectl cancel <order-id>")
	}
	c, err := a.client()
	if err != nil {
		return err
	}
	o, err := c.CancelOrder(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s cancelled.\n", o.OrderNumber)
	return nil
}

// watch prints events as they arrive and re-fetches limits on every event
// that can change them.
func (a *app) watch(ctx context.Context) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}

	if me.Student != nil {
		r := limits.NewRefresher(c, limits.WithPollInterval(a.cfg.PollInterval))
		r.OnUpdate(func(s *model.LimitSnapshot) {
			limit := "unset"
			if s.TotalItemLimit != nil {
				limit = fmt.Sprint(*s.TotalItemLimit)
			}
			fmt.Fprintf(a.out, "limits: %d of %s slots used, blocked=%t\n", s.SlotsUsedFromPlacedOrders, limit, s.BlockedDueToVoid)
		})
		go r.Run(ctx)

		return c.Subscribe(ctx, func(ev events.Event) {
			printEvent(a.out, ev)
			if ev.AffectsLimits() {
				r.Trigger(ev.Name)
			}
		})
	}

	return c.Subscribe(ctx, func(ev events.Event) { printEvent(a.out, ev) })
}

func printEvent(w io.Writer, ev events.Event) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", ev.At.Local().Format("15:04:05"), ev.Name)
	if ev.OrderNumber != "" {
		fmt.Fprintf(&b, " order=%s", ev.OrderNumber)
	} else if ev.OrderID != "" {
		fmt.Fprintf(&b, " order=%s", ev.OrderID)
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, " status=%s", ev.Status)
	}
	if ev.ItemID != 0 {
		fmt.Fprintf(&b, " item=%d", ev.ItemID)
	}
	fmt.Fprintln(w, b.String())
}
