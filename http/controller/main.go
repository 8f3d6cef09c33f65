package controller

import (
	"github.com/dicomlite/dicomlite/config"
	"github.com/dicomlite/dicomlite/infra"
	"github.com/dicomlite/dicomlite/repository"
	"github.com/dicomlite/dicomlite/service"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Ingest     *service.IngestService
	Deleter    *service.DeleteService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Ingest:     service.NewIngestService(config, infra, repo),
		Deleter:    service.NewDeleteService(infra, repo),
	}
}
