package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/config"
	"github.com/ArowuTest/tambola-backend/internal/models"
	mongorepo "github.com/ArowuTest/tambola-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/tambola-backend/internal/utils"
	tokens "github.com/ArowuTest/tambola-backend/pkg/jwt"
	"github.com/ArowuTest/tambola-backend/pkg/logger"
	"github.com/ArowuTest/tambola-backend/pkg/mongodb"
)

type seedOptions struct {
	name         string
	rules        string
	maxWinners   int
	xpPoints     int
	autoClose    bool
	afterWinners int
	players      int
	csvPath      string
	adminID      string
}

// Seeds a WAITING game with tickets, then prints an admin token for driving it
func main() {
	var opts seedOptions
	flag.StringVar(&opts.name, "name", "Tambola Night", "game name")
	flag.StringVar(&opts.rules, "rules", "EARLY_FIVE,TOP_LINE,MIDDLE_LINE,BOTTOM_LINE,FULL_HOUSE", "comma separated rule types in evaluation order")
	flag.IntVar(&opts.maxWinners, "max-winners", 1, "prize slots per rule (1-10)")
	flag.IntVar(&opts.xpPoints, "xp", 100, "XP awarded per prize")
	flag.BoolVar(&opts.autoClose, "auto-close", false, "close the game after -after-winners winners")
	flag.IntVar(&opts.afterWinners, "after-winners", 1, "winner limit used by -auto-close")
	flag.IntVar(&opts.players, "players", 10, "number of generated tickets (one per player) when -csv is not set")
	flag.StringVar(&opts.csvPath, "csv", "", "import pre-generated tickets from this CSV file")
	flag.StringVar(&opts.adminID, "admin", "admin", "user id embedded in the printed admin token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), cfg, opts, log); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, opts seedOptions, log *zap.Logger) error {
	game, err := buildGame(opts)
	if err != nil {
		return err
	}

	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB.Database)
	games := mongorepo.NewGameRepository(db)
	tickets := mongorepo.NewTicketRepository(db)
	if err := games.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := tickets.EnsureIndexes(ctx); err != nil {
		return err
	}

	if err := games.Create(ctx, game); err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	log.Info("game created", zap.String("game_id", game.ID.Hex()), zap.String("name", game.Name))

	if opts.csvPath != "" {
		file, err := os.Open(opts.csvPath)
		if err != nil {
			return fmt.Errorf("open CSV: %w", err)
		}
		defer file.Close()

		result, err := utils.NewTicketImporter(tickets).Import(ctx, game.ID, file)
		if err != nil {
			return err
		}
		for _, rowErr := range result.Errors {
			log.Warn("skipped ticket row", zap.String("error", rowErr))
		}
		log.Info("tickets imported", zap.Int("rows", result.TotalRows), zap.Int("imported", result.Imported), zap.Int64("game_tickets", result.GameTickets))
	} else if opts.players > 0 {
		batch := utils.NewRandomTicketGenerator().Tickets(game.ID, playerIDs(opts.players), 1)
		if err := tickets.CreateMany(ctx, batch); err != nil {
			return fmt.Errorf("create tickets: %w", err)
		}
		log.Info("tickets generated", zap.Int("count", len(batch)))
	}

	if cfg.JWT.Secret != "" {
		token, err := tokens.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL()).Issue(opts.adminID, "Admin", "", tokens.RoleAdmin)
		if err != nil {
			return err
		}
		fmt.Printf("game: %s\nadmin token: %s\n", game.ID.Hex(), token)
	} else {
		fmt.Printf("game: %s\n(JWT.Secret not set, no admin token issued)\n", game.ID.Hex())
	}
	return nil
}

// buildGame assembles a WAITING game from the command line options
func buildGame(opts seedOptions) (*models.Game, error) {
	if opts.maxWinners < 1 || opts.maxWinners > 10 {
		return nil, fmt.Errorf("max-winners must be between 1 and 10, got %d", opts.maxWinners)
	}

	var rules []models.WinningRule
	seen := map[models.RuleType]bool{}
	for _, raw := range strings.Split(opts.rules, ",") {
		ruleType := models.RuleType(strings.ToUpper(strings.TrimSpace(raw)))
		if ruleType == "" {
			continue
		}
		if !ruleType.Valid() {
			return nil, fmt.Errorf("unknown rule type %q", raw)
		}
		if seen[ruleType] {
			return nil, fmt.Errorf("rule type %q listed twice", ruleType)
		}
		seen[ruleType] = true

		rule := models.WinningRule{Type: ruleType, MaxWinners: opts.maxWinners}
		for pos := 1; pos <= opts.maxWinners; pos++ {
			rule.Prizes = append(rule.Prizes, models.Prize{
				Name:     prizeName(ruleType, pos, opts.maxWinners),
				XPPoints: opts.xpPoints,
				Position: pos,
				RuleType: ruleType,
				Status:   models.PrizeStatusOpen,
			})
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}

	autoClose := models.DefaultAutoClose()
	autoClose.Enabled = opts.autoClose
	if opts.afterWinners > 0 {
		autoClose.AfterWinners = opts.afterWinners
	}

	return &models.Game{
		Name:         opts.name,
		Status:       models.GameStatusWaiting,
		TotalTickets: opts.players,
		SoldTickets:  opts.players,
		CreatedBy:    opts.adminID,
		WinningRules: rules,
		AutoClose:    autoClose,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func prizeName(ruleType models.RuleType, position, slots int) string {
	words := strings.Split(strings.ToLower(string(ruleType)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	name := strings.Join(words, " ")
	if slots == 1 {
		return name
	}
	return fmt.Sprintf("%s #%d", name, position)
}

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("player_%03d", i+1)
	}
	return ids
}
