package logger

import (
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"parallel-integrator/internal/config"
)

var (
	fileMutex sync.Mutex
	logFile   *os.File

	// Log общий логгер процесса. До инициализации ничего не пишет.
	Log = zap.NewNop().Sugar()
)

func LogINFO(s string) {
	Log.Info(s)
}

func LogERROR(s string) {
	Log.Error(s)
}

type lockedFile struct {
	file *os.File
}

func (lf *lockedFile) Write(p []byte) (n int, err error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()
	return lf.file.Write(p)
}

func (lf *lockedFile) Sync() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()
	return lf.file.Sync()
}

func InitWorkerLogger() {
	initLogger(config.AppConfig.WorkerLogFilePath, config.AppConfig.LogLevel)
}

func InitCoordinatorLogger() {
	initLogger(config.AppConfig.CoordinatorLogFilePath, config.AppConfig.LogLevel)
}

// InitSamplerLogger пишет в stderr: stdout сэмплера занят протоколом
func InitSamplerLogger(level string) {
	Log = New(zapcore.Lock(os.Stderr), level)
}

func initLogger(path, level string) {
	if path == "" {
		Log = New(zapcore.Lock(os.Stdout), level)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Printf("Failed to open log file: %v. We will use standard output", err)
		Log = New(zapcore.Lock(os.Stdout), level)
		return
	}

	logFile = f
	Log = New(&lockedFile{file: f}, level)
}

// New создает логгер с консольным кодировщиком: время, уровень, место вызова
func New(sink zapcore.WriteSyncer, level string) *zap.SugaredLogger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		CallerKey:        "caller",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "\t",
	})
	core := zapcore.NewCore(encoder, sink, lvl)
	return zap.New(core, zap.AddCaller()).Sugar()
}

func CloseLogger() {
	_ = Log.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
