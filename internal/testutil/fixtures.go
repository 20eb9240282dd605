package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Sample CSV bodies for each pipeline output, small enough to reason about
// in assertions.
const (
	NPSByStatusCSV = `account_status,avg_nps,respondents
arrears,5.5,2
current,8.0,3
`

	NPSLinkageDetailCSV = `customer_id,account_status,nps_score
1,current,9
2,current,7
3,current,8
4,arrears,4
5,arrears,7
6,default,
7,default,2
`

	PortfolioKPIsCSV = `reporting_date,total_accounts,current_accounts,arrears_accounts,default_accounts
2024-03-31,130,100,20,10
2024-01-31,100,80,15,5
2024-02-29,120,90,20,10
`

	RollRatesCSV = `from_status,to_status,roll_rate
current,current,0.9
current,arrears,0.1
arrears,current,0.3
arrears,default,0.2
arrears,default,0.4
`

	SegmentMetricsCSV = `age_band,income_band,region,default_rate
18-25,low,Nairobi,10.0
18-25,high,Coast,20.0
26-35,low,Nairobi,5.0
26-35,high,,7.0
`

	StatusTransitionsCSV = `account_id,from_status,to_status,month
1,current,arrears,2024-02
`

	VintageMetricsCSV = `vintage,accounts,default_rate
2023-Q4,40,0.05
2024-Q1,60,0.03
`
)

// AllOutputs maps every dataset name to its sample CSV body.
func AllOutputs() map[string]string {
	return map[string]string{
		"nps_by_status":      NPSByStatusCSV,
		"nps_linkage_detail": NPSLinkageDetailCSV,
		"portfolio_kpis":     PortfolioKPIsCSV,
		"roll_rates":         RollRatesCSV,
		"segment_metrics":    SegmentMetricsCSV,
		"status_transitions": StatusTransitionsCSV,
		"vintage_metrics":    VintageMetricsCSV,
	}
}

// WriteOutputs writes <name>.csv files into dir and returns dir.
func WriteOutputs(t testing.TB, dir string, files map[string]string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	for name, body := range files {
		path := filepath.Join(dir, name+".csv")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return dir
}

// SetupOutputs creates a temporary outputs directory holding every sample
// dataset.
func SetupOutputs(t testing.TB) string {
	t.Helper()
	return WriteOutputs(t, filepath.Join(t.TempDir(), "outputs"), AllOutputs())
}

// WriteFile writes body to path, creating parent directories.
func WriteFile(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
