package services

import (
	"fmt"
	"strings"
	"time"

	"cian-scraper/models"
	"cian-scraper/utils"
)

// ReportService renders the end-of-run batch summary.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Print writes the run summary to stdout.
func (s *ReportService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  CIAN PIPELINE RUN %s\033[0m\n", r.RunID)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Normalization\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listings normalized : \033[1m%d\033[0m\n", r.Normalized)
	fmt.Printf("  Listings skipped    : \033[1m%d\033[0m\n", r.Skipped)
	fmt.Printf("  Unmapped fields     : \033[1m%d\033[0m\n", r.UnmappedFields)
	fmt.Printf("  Value conflicts     : \033[1m%d\033[0m\n", r.Conflicts)
	fmt.Println()

	fmt.Printf("\033[1;33m  Change Detection\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  New       : \033[1;32m%d\033[0m\n", r.New)
	fmt.Printf("  Updated   : \033[1;32m%d\033[0m\n", r.Updated)
	fmt.Printf("  Unchanged : \033[1m%d\033[0m\n", r.Unchanged)
	fmt.Printf("  Removed   : \033[1;31m%d\033[0m\n", r.Removed)
	fmt.Println()

	fmt.Printf("\033[1;33m  Image Refresh\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Queued   : \033[1m%d\033[0m\n", r.ImageRefreshQueued)
	fmt.Printf("  Accepted : \033[1m%d\033[0m\n", r.ImageAccepted)
	fmt.Println()

	if len(r.Diagnostics) > 0 {
		fmt.Printf("\033[1;33m  Diagnostics\033[0m\n")
		fmt.Printf("  %s\n", thin)
		for _, d := range r.Diagnostics {
			fmt.Printf("  • %s\n", d)
		}
		fmt.Println()
	}

	fmt.Printf("  Completed in %v\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}
