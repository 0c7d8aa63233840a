//go:build highs

package backends

import _ "assigner/milp/highs"
