package switchboard

import (
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
)

func init() {
	sources.Register(sources.SourceTypeSwitchboard, NewReader)
}
