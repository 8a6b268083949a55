package segment

import (
	"fmt"
	"strconv"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func sprint(v any) string { return fmt.Sprintf("%v", v) }
