package config

// Config - параметры хранилища.
// DBDsn в URL-форме (postgres://...). Пустой DBDsn включает хранение в памяти.
type Config struct {
	DBDsn string
}
