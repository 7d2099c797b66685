package registry

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext carries the shared infrastructure handed to every module.
type ModuleContext struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Router *gin.Engine
}

// Module is one self-registering domain (catalog, group, order, ...).
type Module interface {
	// Name returns the module name.
	Name() string

	// Init wires repositories, services and routes.
	Init(ctx *ModuleContext) error

	// Priority orders initialization (lower runs first). The group module
	// must init before order, which depends on its service.
	Priority() int
}

// moduleRegistry is the global registry filled by init() hooks.
var moduleRegistry = make(map[string]Module)

// Register adds a module to the registry.
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules returns all registered modules.
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules initializes all modules in priority order.
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}

	// Bubble sort is fine for a handful of modules.
	for i := 0; i < len(modules); i++ {
		for j := i + 1; j < len(modules); j++ {
			if modules[i].Priority() > modules[j].Priority() {
				modules[i], modules[j] = modules[j], modules[i]
			}
		}
	}

	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return err
		}
	}

	return nil
}
