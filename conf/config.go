package conf

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

/* ========================================================================
 * Config Loader - 配置加载器
 * ========================================================================
 * 职责: 读取配置文件，展开环境变量占位符，解码到配置结构体
 * 技术: Viper + mapstructure 解码钩子
 * 优先级: APP_* 环境变量 > 配置文件（支持 ${VAR:-default}）> 内置默认值
 * ======================================================================== */

// Loader 配置加载接口
type Loader interface {
	Load(config any) error
}

// LoaderOption 调整加载器
type LoaderOption func(*viperLoader)

// WithEnvPrefix 环境变量前缀，默认 APP
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *viperLoader) { l.envPrefix = prefix }
}

// WithConfigType 配置文件格式，默认 yaml
func WithConfigType(configType string) LoaderOption {
	return func(l *viperLoader) { l.configType = configType }
}

// WithDefaults 注册默认键。viper 的 AutomaticEnv 只覆盖已知键，
// 文件里缺省的键必须先有默认值才能被环境变量覆盖
func WithDefaults(defaults map[string]any) LoaderOption {
	return func(l *viperLoader) { l.defaults = defaults }
}

type viperLoader struct {
	configPath string
	configName string
	configType string
	envPrefix  string
	defaults   map[string]any
}

// NewLoader configPath 为搜索目录，configName 不含扩展名；配置文件不存在时只用默认值和环境变量
func NewLoader(configPath, configName string, opts ...LoaderOption) Loader {
	l := &viperLoader{
		configPath: configPath,
		configName: configName,
		configType: "yaml",
		envPrefix:  "APP",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewGatewayLoader 带全部网关默认键的加载器
func NewGatewayLoader(configPath, configName string) Loader {
	return NewLoader(configPath, configName, WithDefaults(Defaults()))
}

// decodeHook "30s" -> time.Duration，"a,b" -> []string
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

func (l *viperLoader) Load(config any) error {
	v := viper.New()
	for key, val := range l.defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := l.locate()
	if err != nil {
		return err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v.SetConfigType(l.configType)
		if err := v.ReadConfig(strings.NewReader(expandEnvPlaceholders(string(raw)))); err != nil {
			return err
		}
	}

	return v.Unmarshal(config, viper.DecodeHook(decodeHook))
}

// locate 借用 viper 的文件搜索逻辑；占位符必须在解析前展开，所以这里只取路径
func (l *viperLoader) locate() (string, error) {
	finder := viper.New()
	finder.AddConfigPath(l.configPath)
	finder.SetConfigName(l.configName)
	finder.SetConfigType(l.configType)

	err := finder.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return finder.ConfigFileUsed(), nil
	case errors.As(err, &notFound):
		return "", nil
	default:
		return "", err
	}
}

var envPlaceholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// expandEnvPlaceholders ${VAR:-default}：未设置或为空时取 default；$VAR 形式原样保留
func expandEnvPlaceholders(raw string) string {
	return envPlaceholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		sub := envPlaceholderPattern.FindStringSubmatch(match)
		if val := os.Getenv(sub[1]); val != "" {
			return val
		}
		return sub[2]
	})
}
