//go:build glpk

package backends

import _ "assigner/milp/glpk"
