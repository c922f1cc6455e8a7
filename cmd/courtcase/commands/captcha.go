package commands

import (
	"fmt"

	"courtcase-backend/internal/components/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	captchaCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(captchaCmd)
}

var captchaCmd = &cobra.Command{
	Use:   "captcha",
	Short: "Talks to the CAPTCHA solving service.",
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Prints the remaining balance of the solving service account.",
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp()
		balance, err := a.captchaClient().Balance(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to get balance", err)
		}
		fmt.Printf("%.4f\n", balance)
	},
}
