package logger

import "go.uber.org/zap"

// Log — общий zap-логгер приложения, инициализируется в main.
var Log *zap.Logger

// Init создает production-логгер. Паникует, если логгер создать не удалось,
// так как без логирования сервис запускать нельзя.
func Init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l
}
