package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/internal/client"
	"github.com/garyjia/canteen-ops/internal/reconcile"
	"github.com/garyjia/canteen-ops/internal/session"
	"github.com/garyjia/canteen-ops/internal/upstream"
	"github.com/garyjia/canteen-ops/pkg/utils"
)

// Command line companion for the canteen-ops proxy: the same attendance,
// expense and prediction flows as the mobile screens, from a terminal.

const usage = `usage: canteenctl [-addr URL] [-date DATE] [-v] <command> [flags]

commands:
  attendance        list attendance for the day (-all walks every page)
  attendance-save   set meals and save (-all-lunch on|off, -all-dinner on|off, -set ID:MEAL:on|off,...)
  expenses          list expenses for the day with the total cost
  expense-add       add and save one expense (-ingredient NAME|ID -qty N -price N)
  ingredients       list the ingredient master list (-q filter)
  predict           show the monthly prediction (-year YYYY -month M)
  export            download a workbook (-kind expenses|attendance -o FILE)
`

type app struct {
	api    *client.Client
	day    time.Time
	out    io.Writer
	logger *zap.Logger
}

func main() {
	global := flag.NewFlagSet("canteenctl", flag.ExitOnError)
	addr := global.String("addr", envOr("CANTEEN_ADDR", "http://localhost:8080"), "proxy base URL")
	date := global.String("date", "", "day to work on (MM/DD/YYYY or YYYY-MM-DD, default today)")
	timeout := global.Duration("timeout", 30*time.Second, "request timeout")
	verbose := global.Bool("v", false, "verbose logging")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	logger, err := utils.NewCLILogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	day := today()
	if *date != "" {
		if day, err = reconcile.ParseDate(*date); err != nil {
			fatalf("Invalid -date: %v", err)
		}
	}

	api, err := client.New(client.Options{BaseURL: *addr, Timeout: *timeout}, logger)
	if err != nil {
		fatalf("%v", err)
	}
	a := &app{api: api, day: day, out: os.Stdout, logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, args := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "attendance":
		err = a.attendance(ctx, args)
	case "attendance-save":
		err = a.attendanceSave(ctx, args)
	case "expenses":
		err = a.expenses(ctx, args)
	case "expense-add":
		err = a.expenseAdd(ctx, args)
	case "ingredients":
		err = a.ingredients(ctx, args)
	case "predict":
		err = a.predict(ctx, args)
	case "export":
		err = a.export(ctx, args)
	default:
		global.Usage()
		os.Exit(2)
	}

	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Body != "" {
			fmt.Fprintf(os.Stderr, "upstream said: %s\n", utils.Excerpt(apiErr.Body, 500))
		}
		fatalf("%s: %v", cmd, err)
	}
}

func (a *app) attendance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("attendance", flag.ExitOnError)
	all := fs.Bool("all", false, "follow hasMore through every page")
	_ = fs.Parse(args)

	board := session.NewAttendanceBoard(a.api, a.day, a.logger)
	if err := board.Load(ctx); err != nil {
		return err
	}

	for {
		snap := board.Snapshot()
		printAttendance(a.out, snap)
		if !*all || !snap.Pagination.CanNext() {
			return nil
		}
		if err := board.Next(ctx); err != nil {
			return err
		}
	}
}

func (a *app) attendanceSave(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("attendance-save", flag.ExitOnError)
	allLunch := fs.String("all-lunch", "", "on|off for every row")
	allDinner := fs.String("all-dinner", "", "on|off for every row")
	set := fs.String("set", "", "comma separated ID:lunch|dinner:on|off")
	_ = fs.Parse(args)

	board := session.NewAttendanceBoard(a.api, a.day, a.logger)
	if err := board.Load(ctx); err != nil {
		return err
	}

	for meal, raw := range map[reconcile.Meal]string{reconcile.Lunch: *allLunch, reconcile.Dinner: *allDinner} {
		if raw == "" {
			continue
		}
		on, err := parseOnOff(raw)
		if err != nil {
			return err
		}
		board.ToggleAll(meal, on)
	}

	if *set != "" {
		for _, item := range strings.Split(*set, ",") {
			id, meal, on, err := parseToggle(item)
			if err != nil {
				return err
			}
			if err := board.Toggle(id, meal, on); err != nil {
				return err
			}
		}
	}

	if err := board.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Attendance saved")
	printAttendance(a.out, board.Snapshot())
	return nil
}

func (a *app) expenses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("expenses", flag.ExitOnError)
	_ = fs.Parse(args)

	sheet := session.NewExpenseSheet(a.api, a.day, a.logger)
	if err := sheet.LoadIngredients(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: ingredient names unavailable: %v\n", err)
	}
	if err := sheet.Load(ctx); err != nil {
		return err
	}
	printExpenses(a.out, sheet.Snapshot())
	return nil
}

func (a *app) expenseAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("expense-add", flag.ExitOnError)
	ingredient := fs.String("ingredient", "", "ingredient name or id")
	qty := fs.String("qty", "", "quantity")
	price := fs.String("price", "", "unit price")
	_ = fs.Parse(args)

	if *ingredient == "" || *qty == "" || *price == "" {
		return fmt.Errorf("-ingredient, -qty and -price are required")
	}

	sheet := session.NewExpenseSheet(a.api, a.day, a.logger)
	if err := sheet.LoadIngredients(ctx); err != nil {
		return err
	}
	if err := sheet.Load(ctx); err != nil {
		return err
	}

	id := sheet.Add()
	if opt, ok := reconcile.MatchIngredient(sheet.Snapshot().Ingredients, *ingredient); ok {
		if err := sheet.SelectIngredient(id, opt); err != nil {
			return err
		}
	} else if reconcile.ParseIngredientID(*ingredient) != nil {
		if err := sheet.SetIngredientID(id, *ingredient); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("unknown ingredient %q", *ingredient)
	}
	if err := sheet.SetQty(id, *qty); err != nil {
		return err
	}
	if err := sheet.SetPrice(id, *price); err != nil {
		return err
	}

	if err := sheet.Save(ctx); err != nil {
		if errors.Is(err, session.ErrNothingToSave) {
			return fmt.Errorf("row incomplete: check -qty and -price")
		}
		return err
	}
	fmt.Fprintln(a.out, "✓ Expense saved")
	printExpenses(a.out, sheet.Snapshot())
	return nil
}

func (a *app) ingredients(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingredients", flag.ExitOnError)
	query := fs.String("q", "", "case-insensitive name filter")
	_ = fs.Parse(args)

	options, err := a.api.FetchIngredients(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, opt := range reconcile.FilterIngredients(options, *query) {
		fmt.Fprintf(w, "%s\t%s\n", opt.ID, opt.Name)
	}
	return w.Flush()
}

func (a *app) predict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	year := fs.Int("year", a.day.Year(), "year")
	month := fs.Int("month", int(a.day.Month()), "month (1-12)")
	_ = fs.Parse(args)

	view := session.NewPredictionView(a.api, a.logger)
	if err := view.Load(ctx, *year, *month); err != nil {
		return err
	}

	snap := view.Snapshot()
	fmt.Fprintf(a.out, "%s: predicted total %.2f\n\n", snap.Title, snap.Total)
	for _, bar := range snap.Bars {
		fmt.Fprintf(a.out, "%s %10.2f %s\n", bar.Date, bar.Amount, strings.Repeat("█", bar.Percent/5))
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	kind := fs.String("kind", "expenses", "expenses or attendance")
	out := fs.String("o", "", "output file (default <kind>-<date>.xlsx)")
	_ = fs.Parse(args)

	var path string
	query := upstream.NewQuery()
	switch *kind {
	case "expenses":
		path = "/api/expenses/export"
		query.Literal("date", reconcile.FormatAPIDate(a.day))
	case "attendance":
		path = "/api/attendance/export"
		query.Literal("attendance_date", reconcile.FormatAPIDate(a.day))
	default:
		return fmt.Errorf("unknown export kind %q", *kind)
	}

	data, err := a.api.Export(ctx, path, query.Encode())
	if err != nil {
		return err
	}
	if *out == "" {
		*out = fmt.Sprintf("%s-%s.xlsx", *kind, reconcile.FormatInputDate(a.day))
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Fprintf(a.out, "✓ Wrote %s (%d bytes)\n", *out, len(data))
	return nil
}

func printAttendance(out io.Writer, snap session.AttendanceSnapshot) {
	fmt.Fprintf(out, "%s  lunch %d  dinner %d  (offset %d)\n\n",
		snap.Label, snap.List.LunchCount, snap.List.DinnerCount, snap.Pagination.Offset)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tINIT\tNAME\tDEPT\tLUNCH\tDINNER\tPAYMENT")
	for _, it := range snap.List.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.EmpCode, it.Initials, it.Name, it.Dept,
			mark(it.Lunch), mark(it.Dinner), reconcile.NormalizePaymentStatus(it.PaymentStatus))
	}
	_ = w.Flush()

	if snap.Pagination.CanNext() {
		fmt.Fprintln(out, "\nmore rows available (use -all)")
	}
}

func printExpenses(out io.Writer, snap session.ExpenseSnapshot) {
	fmt.Fprintf(out, "%s\n\n", snap.Label)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINGREDIENT\tQTY\tPRICE\tTOTAL")
	for _, it := range snap.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\n",
			it.ID, reconcile.IngredientName(it, snap.Ingredients), amount(it.Qty), amount(it.Price), it.Total)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nTotal cost: %.2f\n", snap.TotalCost)
}

func parseOnOff(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", raw)
}

// parseToggle reads ID:MEAL:on|off
func parseToggle(raw string) (int64, reconcile.Meal, bool, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return 0, "", false, fmt.Errorf("invalid toggle %q, expected ID:MEAL:on|off", raw)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false, fmt.Errorf("invalid attendance id %q", parts[0])
	}
	meal, err := reconcile.ParseMeal(parts[1])
	if err != nil {
		return 0, "", false, err
	}
	on, err := parseOnOff(parts[2])
	if err != nil {
		return 0, "", false, err
	}
	return id, meal, on, nil
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return "·"
}

func amount(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
