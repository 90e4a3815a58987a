package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"ariahub/internal/store"
	"ariahub/pkg/config"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles (list, add, delete)",
	Long: `Manage the user profiles delivered to the scale.

The scale holds at most eight profiles, slots 0 through 7. New profiles
take the lowest free slot; deleting a profile frees its slot. The scale
assigns readings to profiles by weight bracket, so keep brackets from
overlapping where possible.`,
}

var (
	userHeightCM    uint16
	userAge         uint8
	userGender      string
	userMinWeightKg float64
	userMaxWeightKg float64
)

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all user profiles",
	RunE:  runUserList,
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a user profile in the lowest free slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a user profile by id, freeing its slot",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

func init() {
	userAddCmd.Flags().Uint16Var(&userHeightCM, "height-cm", 0, "Height in centimeters (required)")
	userAddCmd.Flags().Uint8Var(&userAge, "age", 0, "Age in years (required)")
	userAddCmd.Flags().StringVar(&userGender, "gender", "", `Gender: "female" or "male" (required)`)
	userAddCmd.Flags().Float64Var(&userMinWeightKg, "min-weight", 30, "Lower weight bracket bound in kg")
	userAddCmd.Flags().Float64Var(&userMaxWeightKg, "max-weight", 150, "Upper weight bracket bound in kg")
	_ = userAddCmd.MarkFlagRequired("height-cm")
	_ = userAddCmd.MarkFlagRequired("age")
	_ = userAddCmd.MarkFlagRequired("gender")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
}

// openStore loads the configuration and opens the database for one-shot
// CLI operations. The caller closes the store.
func openStore() (*store.Store, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUserProfiles(context.Background())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No user profiles configured.")
		return nil
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		gender := "female"
		if u.Gender == 1 {
			gender = "male"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(u.ID), 10),
			strconv.Itoa(int(u.ScaleSlot)),
			u.Name,
			fmt.Sprintf("%d cm", u.HeightMM/10),
			strconv.Itoa(int(u.Age)),
			gender,
			fmt.Sprintf("%.0f-%.0f kg",
				float64(u.MinWeightGrams)/1000, float64(u.MaxWeightGrams)/1000),
		})
	}
	printUserTable(os.Stdout, rows)
	return nil
}

// printUserTable renders the profile listing in the borderless style the
// rest of the CLI output follows.
func printUserTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "SLOT", "NAME", "HEIGHT", "AGE", "GENDER", "BRACKET"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if len(name) > 20 {
		return fmt.Errorf("name must be at most 20 characters")
	}
	if userHeightCM < 50 || userHeightCM > 250 {
		return fmt.Errorf("height-cm must be between 50 and 250")
	}
	if userAge < 1 || userAge > 120 {
		return fmt.Errorf("age must be between 1 and 120")
	}
	var gender uint8
	switch userGender {
	case "female":
		gender = 0
	case "male":
		gender = 1
	default:
		return fmt.Errorf(`gender must be "female" or "male"`)
	}
	if userMinWeightKg <= 0 || userMaxWeightKg <= userMinWeightKg {
		return fmt.Errorf("min-weight must be positive and below max-weight")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user := &store.UserProfile{
		Name:           name,
		HeightMM:       userHeightCM * 10,
		Age:            userAge,
		Gender:         gender,
		MinWeightGrams: uint32(userMinWeightKg * 1000),
		MaxWeightGrams: uint32(userMaxWeightKg * 1000),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = st.CreateUserProfile(ctx, user)
	if errors.Is(err, store.ErrNoFreeSlot) {
		return fmt.Errorf("all eight scale slots are occupied; delete a profile first")
	}
	if err != nil {
		return err
	}

	fmt.Printf("User %q created with id %d in slot %d.\n", user.Name, user.ID, user.ScaleSlot)
	fmt.Println("The scale picks the profile up on its next sync.")
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an integer: %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	err = st.DeleteUserProfile(context.Background(), uint(id))
	if errors.Is(err, store.ErrUserNotFound) {
		return fmt.Errorf("no user profile with id %d", id)
	}
	if err != nil {
		return err
	}

	fmt.Printf("User profile %d deleted; its slot is free again.\n", id)
	return nil
}
