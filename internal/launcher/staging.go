package launcher

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tccjustin/axon/internal/service/fs"
)

// stagedScript is a one-shot script holding a hidden command line. It lives
// next to the build so relative paths in the command keep working.
type stagedScript struct {
	path   string
	fs     FileSystem
	logger *zap.Logger
	once   sync.Once
}

func (l *Launcher) stage(id string, req Request) (*stagedScript, error) {
	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, l.cfg.ScriptPrefix+id+".sh")

	// The script is run as argv[1] of cfg.Shell; the shebang only names it.
	content := "#!" + l.cfg.Shell + "\n" + req.Command.String() + "\n"
	if err := l.fs.WriteFile(path, content, 0o700); err != nil {
		return nil, err
	}
	return &stagedScript{path: path, fs: l.fs, logger: l.logger}, nil
}

// remove deletes the script at most once; a script already gone is fine.
func (s *stagedScript) remove() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if err := s.fs.Remove(s.path); err != nil && !fs.IsNotExist(err) {
			s.logger.Warn("failed to remove staged script", zap.String("script", s.path), zap.Error(err))
		}
	})
}
