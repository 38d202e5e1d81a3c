package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShalihaZarook05/Flat-price-prediction/internal/config"
)

// --- account ---

var registerCmd = &cobra.Command{
	Use:   "register <email> <password>",
	Short: "Create a backend account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		if err := client.Register(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Registered %s", args[0])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Log in to the backend and store the session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		session, err := client.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if err := config.SetSecret(config.SecretSessionToken, session.Token); err != nil {
			return fmt.Errorf("storing session token: %w", err)
		}
		printSuccess("Logged in as %s", session.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the backend session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			printWarning("backend logout failed: %v", err)
		}
		if err := config.DeleteSecret(config.SecretSessionToken); err != nil {
			return fmt.Errorf("removing session token: %w", err)
		}
		printSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in backend account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		user, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("User", "%s (id %d)", user.Email, user.ID)
		return nil
	},
}

// --- predict ---

var predictCmd = &cobra.Command{
	Use:   "predict <attributes>",
	Short: "Predict a flat's sale price and record it in the local history",
	Long: `Predict a flat's sale price and record it in the local history.

Attributes are passed to the model as-is, either as a JSON object or as
key=value pairs:

  flatprice predict '{"area": 54, "rooms": 2, "floor": 3}'
  flatprice predict area=54 rooms=2 floor=3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := attrsFromArgs(args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/predict", input)
		if err != nil {
			return err
		}

		var result struct {
			Record struct {
				ID string `json:"id"`
			} `json:"record"`
			PredictedPrice float64 `json:"predicted_price"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Predicted price: %s", money(result.PredictedPrice))
		printStatus("Record", "%s", result.Record.ID)
		return nil
	},
}

// attrsFromArgs builds the prediction input map. A single argument starting
// with "{" is parsed as a JSON object; otherwise each argument must be a
// key=value pair. Numeric values become numbers, everything else stays a
// string.
func attrsFromArgs(args []string) (map[string]any, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		input, err := parseJSONObject(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid attributes JSON: %w", err)
		}
		return input, nil
	}

	input := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", arg)
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			input[key] = n
		} else {
			input[key] = value
		}
	}
	return input, nil
}

func parseJSONObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// --- history (local) ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the local prediction history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local prediction records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		favorites, _ := cmd.Flags().GetBool("favorites")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/history"
		if favorites {
			path = "/history/favorites"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var body struct {
			Items []struct {
				ID             string         `json:"id"`
				Input          map[string]any `json:"input"`
				PredictedPrice float64        `json:"predictedPrice"`
				Timestamp      string         `json:"timestamp"`
				IsFavorite     bool           `json:"isFavorite"`
			} `json:"items"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		items := body.Items
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		if len(items) == 0 {
			fmt.Println("No predictions found.")
			return nil
		}

		for _, item := range items {
			marker := " "
			if item.IsFavorite {
				marker = colorize(colorYellow, "★")
			}
			fmt.Printf("%s %s  %s  %s\n",
				marker,
				colorize(colorCyan, item.ID),
				item.Timestamp,
				colorize(colorBold, money(item.PredictedPrice)),
			)
		}
		return nil
	},
}

var historyFavoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle the favorite flag on a local record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/history/"+args[0]+"/favorite", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Toggled favorite on %s", args[0])
		return nil
	},
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a local record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/history/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Removed %s", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every local record",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete the whole local history. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/history")
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("History cleared")
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the local history as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/history")
		if err != nil {
			return err
		}

		var body struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)
		for _, item := range body.Items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}

		if output != "" {
			printSuccess("Exported %d records to %s", len(body.Items), output)
		}
		return nil
	},
}

var historyReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the history from durable storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/history/reload", nil)
		if err != nil {
			return err
		}
		var body struct {
			Items []any `json:"items"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		printSuccess("Reloaded %d records", len(body.Items))
		return nil
	},
}

func init() {
	historyExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	historyListCmd.Flags().Bool("favorites", false, "show only favorites")
	historyListCmd.Flags().Int("limit", 0, "maximum number of records to list (0 = all)")
	historyClearCmd.Flags().Bool("confirm", false, "confirm clearing the history")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyFavoriteCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyReloadCmd)
}

// --- remote (server-side history) ---

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage the backend's server-side prediction history",
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List server-side records for the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		records, err := client.History(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No predictions found.")
			return nil
		}
		for _, r := range records {
			marker := " "
			if r.Favorite {
				marker = colorize(colorYellow, "★")
			}
			fmt.Printf("%s %s  %s  %s\n",
				marker,
				colorize(colorCyan, strconv.FormatInt(r.ID, 10)),
				r.CreatedAt,
				colorize(colorBold, money(r.Price)),
			)
		}
		return nil
	},
}

var remoteFavoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle the favorite flag on a server-side record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[0])
		}
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		favorite, err := client.ToggleFavorite(cmd.Context(), id)
		if err != nil {
			return err
		}
		if favorite {
			printSuccess("Record %d marked favorite", id)
		} else {
			printSuccess("Record %d unmarked", id)
		}
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a server-side record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[0])
		}
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		if err := client.DeleteHistory(cmd.Context(), id); err != nil {
			return err
		}
		printSuccess("Removed record %d", id)
		return nil
	},
}

func init() {
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteFavoriteCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
}

// --- admin ---

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administer the prediction backend",
}

var adminLoginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Log in as an administrator",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		session, err := client.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if err := config.SetSecret(config.SecretAdminToken, session.Token); err != nil {
			return fmt.Errorf("storing admin token: %w", err)
		}
		printSuccess("Logged in as %s (%s)", session.Admin.Email, session.Admin.Role)
		return nil
	},
}

var adminLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the admin session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		if err := client.Logout(cmd.Context()); err != nil {
			printWarning("backend logout failed: %v", err)
		}
		if err := config.DeleteSecret(config.SecretAdminToken); err != nil {
			return fmt.Errorf("removing admin token: %w", err)
		}
		printSuccess("Logged out")
		return nil
	},
}

var adminMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the logged-in admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		a, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Admin", "%s (%s, id %d)", a.Email, a.Role, a.ID)
		return nil
	},
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		users, err := client.Users(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			state := ""
			if u.IsBlocked {
				state = colorize(colorRed, "  [blocked]")
			}
			fmt.Printf("%s  %s  %d predictions%s\n",
				colorize(colorCyan, strconv.FormatInt(u.ID, 10)),
				u.Email, u.PredictionCount, state,
			)
		}
		return nil
	},
}

var adminBlockCmd = &cobra.Command{
	Use:   "block <user-id>",
	Short: "Toggle a user's blocked flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		blocked, err := client.ToggleBlock(cmd.Context(), id)
		if err != nil {
			return err
		}
		if blocked {
			printSuccess("User %d blocked", id)
		} else {
			printSuccess("User %d unblocked", id)
		}
		return nil
	},
}

var adminDeleteUserCmd = &cobra.Command{
	Use:   "delete-user <user-id>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete the account and its predictions. Use --confirm to proceed.")
			return nil
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		if err := client.DeleteUser(cmd.Context(), id); err != nil {
			return err
		}
		printSuccess("Deleted user %d", id)
		return nil
	},
}

var adminPredictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "List predictions across all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		predictions, err := client.Predictions(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range predictions {
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorCyan, strconv.FormatInt(p.ID, 10)),
				p.CreatedAt, p.UserEmail,
				colorize(colorBold, money(p.Price)),
			)
		}
		return nil
	},
}

var adminDeletePredictionCmd = &cobra.Command{
	Use:   "delete-prediction <id>",
	Short: "Delete one prediction record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid prediction id %q", args[0])
		}
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		if err := client.DeletePrediction(cmd.Context(), id); err != nil {
			return err
		}
		printSuccess("Deleted prediction %d", id)
		return nil
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate backend statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		stats, err := client.Stats(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Users", "%d (%d new this week)", stats.TotalUsers, stats.RecentUsersCount)
		printStatus("Predictions", "%d (%d new this week)", stats.TotalPredictions, stats.RecentPredictionsCount)
		printStatus("Avg price", "%s", money(stats.AvgPrice))
		printStatus("Price range", "%s – %s", money(stats.MinPrice), money(stats.MaxPrice))
		return nil
	},
}

var adminModelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Show metadata about the deployed prediction model",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		info, err := client.ModelInfo(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("Model", "%s", info.ModelType)
		printStatus("Features", "%d (%s)", info.FeaturesCount, strings.Join(info.FeatureNames, ", "))
		printStatus("Accuracy", "%s", info.Accuracy)
		printStatus("Last trained", "%s", info.LastTrained)
		printStatus("Predictions served", "%d", info.TotalPredictions)
		return nil
	},
}

var adminDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the full admin overview as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAdminClient()
		if err != nil {
			return err
		}
		dash, err := client.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(dash)
	},
}

func init() {
	adminDeleteUserCmd.Flags().Bool("confirm", false, "confirm account deletion")
	adminCmd.AddCommand(adminLoginCmd)
	adminCmd.AddCommand(adminLogoutCmd)
	adminCmd.AddCommand(adminMeCmd)
	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminBlockCmd)
	adminCmd.AddCommand(adminDeleteUserCmd)
	adminCmd.AddCommand(adminPredictionsCmd)
	adminCmd.AddCommand(adminDeletePredictionCmd)
	adminCmd.AddCommand(adminStatsCmd)
	adminCmd.AddCommand(adminModelInfoCmd)
	adminCmd.AddCommand(adminDashboardCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
