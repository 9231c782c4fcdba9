package memory

import (
	"fmt"

	"github.com/loomhr/leave-engine/leave"
)

func accrualMarkKey(key leave.BalanceKey, period leave.Period) string {
	return fmt.Sprintf("%s|%s|%s|%s", key.TenantID, key.Employee, key.Code, period)
}

func rolloverMarkKey(key leave.BalanceKey, targetYear int) string {
	return fmt.Sprintf("%s|%s|%s|%d", key.TenantID, key.Employee, key.Code, targetYear)
}
