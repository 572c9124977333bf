package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

type commandContext struct {
	configOnce sync.Once
	config     config.Config
	location   *time.Location
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureConfig loads the environment once and installs the default logger.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		loc, err := cfg.Location()
		if err != nil {
			c.configErr = err
			return
		}
		slog.SetDefault(newLogger(cfg))
		c.config = cfg
		c.location = loc
	})
	return c.config, c.configErr
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// app is the wired storage and service graph shared by the commands.
type app struct {
	employees *service.EmployeeService
	groups    *service.GroupService
	tasks     *service.TaskService
	recreator *service.Recreator
	reminders *service.ReminderService

	employeeRepo *repository.EmployeeRepository
}

func (c *commandContext) withApp(fn func(*app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	logger := slog.Default()
	taskRepo := repository.NewTaskRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	employees := service.NewEmployeeService(employeeRepo)
	recreator := service.NewRecreator(taskRepo, logger)
	tasks := service.NewTaskService(taskRepo, employees, recreator, logger)

	return fn(&app{
		employees:    employees,
		groups:       service.NewGroupService(groupRepo, employeeRepo),
		tasks:        tasks,
		recreator:    recreator,
		reminders:    service.NewReminderService(tasks, groupRepo, cfg.LookAheadDays),
		employeeRepo: employeeRepo,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
